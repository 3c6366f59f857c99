package ipecho

import (
	"context"
	"fmt"
	"io"
	"net/netip"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

const publicIPv4Path = "public-ipv4"

// MetadataAPI is the subset of the instance metadata client used here
type MetadataAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// IMDSResolver reads the public address of the EC2 instance the tool runs on
type IMDSResolver struct {
	client MetadataAPI
}

// NewIMDSResolver creates an IMDSResolver from the default AWS config
func NewIMDSResolver(ctx context.Context) (*IMDSResolver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return &IMDSResolver{client: imds.NewFromConfig(cfg)}, nil
}

// NewIMDSResolverWithClient wraps an existing metadata client
func NewIMDSResolverWithClient(client MetadataAPI) *IMDSResolver {
	return &IMDSResolver{client: client}
}

// Lookup implements Resolver.
func (r *IMDSResolver) Lookup(ctx context.Context) (netip.Addr, error) {
	out, err := r.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: publicIPv4Path})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error querying instance metadata %s: %w", publicIPv4Path, err)
	}
	defer out.Content.Close()

	body, err := io.ReadAll(io.LimitReader(out.Content, maxBodyBytes))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading instance metadata: %w", err)
	}
	return ParseIPv4(string(body))
}
