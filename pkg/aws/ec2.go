package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/younsl/allowme/pkg/utils"
)

const (
	// allProtocols is the EC2 wildcard for every IP protocol and port
	allProtocols = "-1"

	// AWS error codes the authorizer branches on
	codeACLEntryExists      = "NetworkAclEntryAlreadyExists"
	codeDuplicatePermission = "InvalidPermission.Duplicate"

	ruleDescription = "allowme: caller address"
)

// EC2API is the subset of the EC2 client the authorizer calls
type EC2API interface {
	CreateNetworkAclEntry(ctx context.Context, params *ec2.CreateNetworkAclEntryInput, optFns ...func(*ec2.Options)) (*ec2.CreateNetworkAclEntryOutput, error)
	ReplaceNetworkAclEntry(ctx context.Context, params *ec2.ReplaceNetworkAclEntryInput, optFns ...func(*ec2.Options)) (*ec2.ReplaceNetworkAclEntryOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

// ACLEntry identifies an allow-all ingress entry of a network ACL
type ACLEntry struct {
	NetworkACLID string
	RuleNumber   int32
	CIDR         string
}

// NetworkClient struct for the EC2 network security APIs
type NetworkClient struct {
	client EC2API
	region string
}

// NewNetworkClient creates a new NetworkClient. Empty region or profile
// leave the choice to the SDK default chain.
func NewNetworkClient(ctx context.Context, region, profile string) (*NetworkClient, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, errors.New("no AWS region configured: set AWS_REGION in the config file or pass --region")
	}

	return &NetworkClient{
		client: ec2.NewFromConfig(cfg),
		region: cfg.Region,
	}, nil
}

// NewNetworkClientWithAPI wraps an existing EC2 API implementation
func NewNetworkClientWithAPI(api EC2API, region string) *NetworkClient {
	return &NetworkClient{client: api, region: region}
}

// Region returns the region the client talks to
func (c *NetworkClient) Region() string {
	return c.region
}

// CreateIngressEntry adds an allow-all-protocols ingress entry to the network ACL
func (c *NetworkClient) CreateIngressEntry(ctx context.Context, entry ACLEntry) error {
	input := &ec2.CreateNetworkAclEntryInput{
		NetworkAclId: aws.String(entry.NetworkACLID),
		RuleNumber:   aws.Int32(entry.RuleNumber),
		Protocol:     aws.String(allProtocols),
		RuleAction:   types.RuleActionAllow,
		Egress:       aws.Bool(false),
		CidrBlock:    aws.String(entry.CIDR),
	}

	if _, err := c.client.CreateNetworkAclEntry(ctx, input); err != nil {
		return fmt.Errorf("error creating network ACL entry %d on %s: %w", entry.RuleNumber, entry.NetworkACLID, err)
	}
	return nil
}

// ReplaceIngressEntry overwrites the ingress entry at the same rule number
func (c *NetworkClient) ReplaceIngressEntry(ctx context.Context, entry ACLEntry) error {
	input := &ec2.ReplaceNetworkAclEntryInput{
		NetworkAclId: aws.String(entry.NetworkACLID),
		RuleNumber:   aws.Int32(entry.RuleNumber),
		Protocol:     aws.String(allProtocols),
		RuleAction:   types.RuleActionAllow,
		Egress:       aws.Bool(false),
		CidrBlock:    aws.String(entry.CIDR),
	}

	if _, err := c.client.ReplaceNetworkAclEntry(ctx, input); err != nil {
		return fmt.Errorf("error replacing network ACL entry %d on %s: %w", entry.RuleNumber, entry.NetworkACLID, err)
	}
	return nil
}

// AuthorizeIngress allows all protocols and ports from cidr into the security group
func (c *NetworkClient) AuthorizeIngress(ctx context.Context, groupID, cidr string) error {
	input := &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []types.IpPermission{
			{
				IpProtocol: aws.String(allProtocols),
				IpRanges: []types.IpRange{
					{
						CidrIp:      aws.String(cidr),
						Description: aws.String(ruleDescription),
					},
				},
			},
		},
		TagSpecifications: utils.RuleTagSpecification(map[string]string{
			"ManagedBy": "allowme",
		}),
	}

	if _, err := c.client.AuthorizeSecurityGroupIngress(ctx, input); err != nil {
		return fmt.Errorf("error authorizing ingress from %s on %s: %w", cidr, groupID, err)
	}
	return nil
}

// IsACLEntryExists reports whether err says the ACL rule number is already taken
func IsACLEntryExists(err error) bool {
	return hasErrorCode(err, codeACLEntryExists)
}

// IsDuplicatePermission reports whether err says the security group already has the rule
func IsDuplicatePermission(err error) bool {
	return hasErrorCode(err, codeDuplicatePermission)
}

func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}
