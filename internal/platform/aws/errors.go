package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/imamik/ekstack/internal/controlplane"
)

// Error codes grouped by class. AWS services disagree on spelling, so the
// sets are wide; anything unlisted stays fatal, which is the safe default.
var (
	conflictCodes = map[string]bool{
		"AlreadyExistsException":      true, // cloudformation
		"ResourceInUseException":      true, // eks
		"BucketAlreadyOwnedByYou":     true, // s3, same account
		"EntityAlreadyExists":         true, // iam
		"InvalidPermission.Duplicate": true, // ec2 security group rules
		"DuplicateLoadBalancerName":   true, // elbv2
	}

	notFoundCodes = map[string]bool{
		"ResourceNotFoundException":               true,
		"NoSuchEntity":                            true,
		"NoSuchBucket":                            true,
		"NotFound":                                true,
		"LoadBalancerNotFound":                    true,
		"NatGatewayNotFound":                      true,
		"InvalidSubnetID.NotFound":                true,
		"InvalidVpcID.NotFound":                   true,
		"InvalidNetworkInterfaceID.NotFound":      true,
		"InvalidInternetGatewayID.NotFound":       true,
		"InvalidGroup.NotFound":                   true,
		"InvalidRouteTableID.NotFound":            true,
		"InvalidAssociationID.NotFound":           true,
		"InvalidVpcEndpointId.NotFound":           true,
	}

	transientCodes = map[string]bool{
		"Throttling":              true,
		"ThrottlingException":     true,
		"TooManyRequestsException": true,
		"RequestLimitExceeded":    true,
		"ServiceUnavailable":      true,
		"InternalError":           true,
		"InternalFailure":         true,
		"RequestTimeout":          true,
	}
)

// classify wraps a provider error with its class. CloudFormation reports a
// missing stack as a ValidationError whose message names the stack, so that
// case is matched on the message.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var missing *missingError
	if errors.As(err, &missing) {
		return controlplane.NewError(controlplane.ClassNotFound, op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case conflictCodes[code]:
			return controlplane.NewError(controlplane.ClassConflict, op, err)
		case notFoundCodes[code]:
			return controlplane.NewError(controlplane.ClassNotFound, op, err)
		case transientCodes[code]:
			return controlplane.NewError(controlplane.ClassTransient, op, err)
		case code == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist"):
			return controlplane.NewError(controlplane.ClassNotFound, op, err)
		}
	}
	return controlplane.NewError(controlplane.ClassFatal, op, err)
}
