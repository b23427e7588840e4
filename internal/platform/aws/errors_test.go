package aws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/imamik/ekstack/internal/controlplane"
)

func apiError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"nil passes through", nil, func(err error) bool { return err == nil }},
		{"eks in use is conflict", apiError("ResourceInUseException", "cluster exists"), controlplane.IsConflict},
		{"cfn already exists is conflict", apiError("AlreadyExistsException", "stack exists"), controlplane.IsConflict},
		{"bucket owned by us is conflict", apiError("BucketAlreadyOwnedByYou", ""), controlplane.IsConflict},
		{"iam entity exists is conflict", apiError("EntityAlreadyExists", "role exists"), controlplane.IsConflict},
		{"eks not found", apiError("ResourceNotFoundException", "no such cluster"), controlplane.IsNotFound},
		{"iam not found", apiError("NoSuchEntity", "no such role"), controlplane.IsNotFound},
		{"subnet not found", apiError("InvalidSubnetID.NotFound", ""), controlplane.IsNotFound},
		{"missing stack validation error", apiError("ValidationError", "Stack with id x does not exist"), controlplane.IsNotFound},
		{"empty listing is not found", &missingError{kind: "subnet", id: "subnet-1"}, controlplane.IsNotFound},
		{"throttling is transient", apiError("Throttling", "slow down"), controlplane.IsTransient},
		{"request limit is transient", apiError("RequestLimitExceeded", ""), controlplane.IsTransient},
		{"bucket taken elsewhere is fatal", apiError("BucketAlreadyExists", "name is taken"), controlplane.IsFatal},
		{"other validation error is fatal", apiError("ValidationError", "malformed template"), controlplane.IsFatal},
		{"unclassified error is fatal", errors.New("connection reset"), controlplane.IsFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(classify("test op", tt.err)))
		})
	}
}

func TestClassifyRetainsProviderError(t *testing.T) {
	cause := apiError("ResourceInUseException", "cluster busy")
	err := classify("create cluster", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "create cluster")
}

func TestClassifyUnwrapsNestedAPIErrors(t *testing.T) {
	wrapped := fmt.Errorf("operation error EKS: %w", apiError("ResourceNotFoundException", "gone"))
	assert.True(t, controlplane.IsNotFound(classify("observe cluster", wrapped)))
}
