package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveNetworkResource implements controlplane.CloudAPI. The attachment
// list is what the reclamation engine walks, so every observation reports
// the dependents the EC2 API knows about for that kind.
func (c *Client) ObserveNetworkResource(ctx context.Context, kind, id string) (controlplane.ResourceObservation, error) {
	switch kind {
	case "subnet":
		return c.observeSubnet(ctx, id)
	case "vpc":
		return c.observeVPC(ctx, id)
	case "network-interface":
		return c.observeNetworkInterface(ctx, id)
	case "nat-gateway":
		return c.observeNatGateway(ctx, id)
	case "internet-gateway":
		return c.observeInternetGateway(ctx, id)
	case "security-group":
		return c.observeSecurityGroup(ctx, id)
	case "route-table":
		return c.observeRouteTable(ctx, id)
	case "vpc-endpoint":
		return c.observeVpcEndpoint(ctx, id)
	}
	return controlplane.ResourceObservation{Kind: kind, ID: id, Status: controlplane.StatusUnknown},
		controlplane.NewError(controlplane.ClassFatal, "observe network resource",
			fmt.Errorf("unsupported network resource kind %q", kind))
}

func (c *Client) observeSubnet(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{id},
	})
	if err != nil || len(out.Subnets) == 0 {
		return notFoundObservation("subnet", id), classify("observe subnet", orMissing(err, "subnet", id))
	}

	obs := controlplane.ResourceObservation{
		Kind: "subnet", ID: id, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{"vpcId": str(out.Subnets[0].VpcId)},
	}

	enis, err := c.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{filter("subnet-id", id)},
	})
	if err != nil {
		return obs, classify("list network interfaces", err)
	}
	for _, eni := range enis.NetworkInterfaces {
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "network-interface", ID: str(eni.NetworkInterfaceId),
		})
	}

	tables, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{filter("association.subnet-id", id)},
	})
	if err != nil {
		return obs, classify("list route tables", err)
	}
	for _, rt := range tables.RouteTables {
		for _, assoc := range rt.Associations {
			if str(assoc.SubnetId) == id {
				obs.Attachments = append(obs.Attachments, controlplane.Attachment{
					Kind: "route-table-association", ID: str(assoc.RouteTableAssociationId),
				})
			}
		}
	}

	nats, err := c.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{filter("subnet-id", id)},
	})
	if err != nil {
		return obs, classify("list nat gateways", err)
	}
	for _, nat := range nats.NatGateways {
		if nat.State == ec2types.NatGatewayStateDeleted {
			continue
		}
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "nat-gateway", ID: str(nat.NatGatewayId),
		})
	}
	return obs, nil
}

func (c *Client) observeVPC(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{id},
	})
	if err != nil || len(out.Vpcs) == 0 {
		return notFoundObservation("vpc", id), classify("observe vpc", orMissing(err, "vpc", id))
	}

	obs := controlplane.ResourceObservation{
		Kind: "vpc", ID: id, Exists: true, Status: controlplane.StatusActive,
	}

	igws, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{filter("attachment.vpc-id", id)},
	})
	if err != nil {
		return obs, classify("list internet gateways", err)
	}
	for _, igw := range igws.InternetGateways {
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "internet-gateway", ID: str(igw.InternetGatewayId),
		})
	}

	groups, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{filter("vpc-id", id)},
	})
	if err != nil {
		return obs, classify("list security groups", err)
	}
	for _, sg := range groups.SecurityGroups {
		if str(sg.GroupName) == "default" {
			continue
		}
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "security-group", ID: str(sg.GroupId),
		})
	}

	endpoints, err := c.ec2.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{
		Filters: []ec2types.Filter{filter("vpc-id", id)},
	})
	if err != nil {
		return obs, classify("list vpc endpoints", err)
	}
	for _, ep := range endpoints.VpcEndpoints {
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "vpc-endpoint", ID: str(ep.VpcEndpointId),
		})
	}
	return obs, nil
}

func (c *Client) observeNetworkInterface(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{id},
	})
	if err != nil || len(out.NetworkInterfaces) == 0 {
		return notFoundObservation("network-interface", id),
			classify("observe network interface", orMissing(err, "network interface", id))
	}
	eni := out.NetworkInterfaces[0]
	obs := controlplane.ResourceObservation{
		Kind: "network-interface", ID: id, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{"status": string(eni.Status)},
	}
	if eni.Attachment != nil {
		obs.Detail["attachmentId"] = str(eni.Attachment.AttachmentId)
	}
	return obs, nil
}

func (c *Client) observeNatGateway(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{id},
	})
	if err != nil || len(out.NatGateways) == 0 {
		return notFoundObservation("nat-gateway", id), classify("observe nat gateway", orMissing(err, "nat gateway", id))
	}
	nat := out.NatGateways[0]
	status := controlplane.StatusActive
	switch nat.State {
	case ec2types.NatGatewayStateDeleted:
		return notFoundObservation("nat-gateway", id), nil
	case ec2types.NatGatewayStateDeleting:
		status = controlplane.StatusDeleting
	case ec2types.NatGatewayStatePending:
		status = controlplane.StatusCreating
	case ec2types.NatGatewayStateFailed:
		status = controlplane.StatusFailed
	}
	return controlplane.ResourceObservation{
		Kind: "nat-gateway", ID: id, Exists: true, Status: status,
	}, nil
}

func (c *Client) observeInternetGateway(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{id},
	})
	if err != nil || len(out.InternetGateways) == 0 {
		return notFoundObservation("internet-gateway", id),
			classify("observe internet gateway", orMissing(err, "internet gateway", id))
	}
	obs := controlplane.ResourceObservation{
		Kind: "internet-gateway", ID: id, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{},
	}
	for _, att := range out.InternetGateways[0].Attachments {
		obs.Detail["vpcId"] = str(att.VpcId)
	}
	return obs, nil
}

func (c *Client) observeSecurityGroup(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil || len(out.SecurityGroups) == 0 {
		return notFoundObservation("security-group", id),
			classify("observe security group", orMissing(err, "security group", id))
	}
	return controlplane.ResourceObservation{
		Kind: "security-group", ID: id, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{"name": str(out.SecurityGroups[0].GroupName)},
	}, nil
}

func (c *Client) observeRouteTable(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{id},
	})
	if err != nil || len(out.RouteTables) == 0 {
		return notFoundObservation("route-table", id), classify("observe route table", orMissing(err, "route table", id))
	}
	obs := controlplane.ResourceObservation{
		Kind: "route-table", ID: id, Exists: true, Status: controlplane.StatusActive,
	}
	for _, assoc := range out.RouteTables[0].Associations {
		if awssdk.ToBool(assoc.Main) {
			continue
		}
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "route-table-association", ID: str(assoc.RouteTableAssociationId),
		})
	}
	return obs, nil
}

func (c *Client) observeVpcEndpoint(ctx context.Context, id string) (controlplane.ResourceObservation, error) {
	out, err := c.ec2.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{
		VpcEndpointIds: []string{id},
	})
	if err != nil || len(out.VpcEndpoints) == 0 {
		return notFoundObservation("vpc-endpoint", id), classify("observe vpc endpoint", orMissing(err, "vpc endpoint", id))
	}
	return controlplane.ResourceObservation{
		Kind: "vpc-endpoint", ID: id, Exists: true, Status: controlplane.StatusActive,
	}, nil
}

// ForceDeleteNetworkResource implements controlplane.CloudAPI. Each kind gets
// the strongest deletion the API offers: interfaces are force-detached first,
// gateways detached from their VPC, and security groups emptied of rules so
// circular group-to-group references cannot block the delete.
func (c *Client) ForceDeleteNetworkResource(ctx context.Context, kind, id string) error {
	c.logger.Info("force deleting network resource", "kind", kind, "id", id)

	switch kind {
	case "network-interface":
		return c.forceDeleteNetworkInterface(ctx, id)
	case "subnet":
		_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: awssdk.String(id)})
		return classify("delete subnet", err)
	case "vpc":
		_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: awssdk.String(id)})
		return classify("delete vpc", err)
	case "nat-gateway":
		_, err := c.ec2.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: awssdk.String(id)})
		return classify("delete nat gateway", err)
	case "internet-gateway":
		return c.forceDeleteInternetGateway(ctx, id)
	case "security-group":
		return c.forceDeleteSecurityGroup(ctx, id)
	case "route-table":
		_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: awssdk.String(id)})
		return classify("delete route table", err)
	case "vpc-endpoint":
		_, err := c.ec2.DeleteVpcEndpoints(ctx, &ec2.DeleteVpcEndpointsInput{VpcEndpointIds: []string{id}})
		return classify("delete vpc endpoint", err)
	}
	return controlplane.NewError(controlplane.ClassFatal, "force delete network resource",
		fmt.Errorf("unsupported network resource kind %q", kind))
}

func (c *Client) forceDeleteNetworkInterface(ctx context.Context, id string) error {
	obs, err := c.observeNetworkInterface(ctx, id)
	if controlplane.IsNotFound(err) {
		return controlplane.NewError(controlplane.ClassConflict, "delete network interface", err)
	}
	if err != nil {
		return err
	}
	if attachmentID := obs.Detail["attachmentId"]; attachmentID != "" {
		_, err := c.ec2.DetachNetworkInterface(ctx, &ec2.DetachNetworkInterfaceInput{
			AttachmentId: awssdk.String(attachmentID),
			Force:        awssdk.Bool(true),
		})
		if err = classify("detach network interface", err); err != nil && !controlplane.IsNotFound(err) {
			return err
		}
	}
	_, err2 := c.ec2.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
		NetworkInterfaceId: awssdk.String(id),
	})
	return classify("delete network interface", err2)
}

func (c *Client) forceDeleteInternetGateway(ctx context.Context, id string) error {
	obs, err := c.observeInternetGateway(ctx, id)
	if controlplane.IsNotFound(err) {
		return controlplane.NewError(controlplane.ClassConflict, "delete internet gateway", err)
	}
	if err != nil {
		return err
	}
	if vpcID := obs.Detail["vpcId"]; vpcID != "" {
		_, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: awssdk.String(id),
			VpcId:             awssdk.String(vpcID),
		})
		if err = classify("detach internet gateway", err); err != nil && !controlplane.IsNotFound(err) {
			return err
		}
	}
	_, err2 := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: awssdk.String(id),
	})
	return classify("delete internet gateway", err2)
}

// forceDeleteSecurityGroup revokes all ingress and egress rules before the
// delete. Clearing rules first breaks circular references between groups
// that otherwise deadlock deletion.
func (c *Client) forceDeleteSecurityGroup(ctx context.Context, id string) error {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil {
		cerr := classify("observe security group", err)
		if controlplane.IsNotFound(cerr) {
			return controlplane.NewError(controlplane.ClassConflict, "delete security group", err)
		}
		return cerr
	}
	if len(out.SecurityGroups) > 0 {
		sg := out.SecurityGroups[0]
		if len(sg.IpPermissions) > 0 {
			_, err := c.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
				GroupId:       awssdk.String(id),
				IpPermissions: sg.IpPermissions,
			})
			if err = classify("revoke ingress rules", err); err != nil && !controlplane.IsNotFound(err) {
				return err
			}
		}
		if len(sg.IpPermissionsEgress) > 0 {
			_, err := c.ec2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
				GroupId:       awssdk.String(id),
				IpPermissions: sg.IpPermissionsEgress,
			})
			if err = classify("revoke egress rules", err); err != nil && !controlplane.IsNotFound(err) {
				return err
			}
		}
	}
	_, err = c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: awssdk.String(id),
	})
	return classify("delete security group", err)
}

// DisassociateRouteTable implements controlplane.CloudAPI.
func (c *Client) DisassociateRouteTable(ctx context.Context, associationID string) error {
	c.logger.Info("disassociating route table", "association", associationID)
	_, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
		AssociationId: awssdk.String(associationID),
	})
	return classify("disassociate route table", err)
}

func filter(name, value string) ec2types.Filter {
	return ec2types.Filter{Name: awssdk.String(name), Values: []string{value}}
}

func notFoundObservation(kind, id string) controlplane.ResourceObservation {
	return controlplane.ResourceObservation{Kind: kind, ID: id, Status: controlplane.StatusNotFound}
}

// orMissing substitutes a not-found error when the listing succeeded but
// came back empty.
func orMissing(err error, kind, id string) error {
	if err != nil {
		return err
	}
	return &missingError{kind: kind, id: id}
}

type missingError struct {
	kind string
	id   string
}

func (e *missingError) Error() string {
	return e.kind + " " + e.id + " does not exist"
}
