// Package authorizer opens a VPC's network ACL and security group to the
// caller's current public IPv4 address.
//
// A run is a fixed sequence: resolve the address, create the network ACL
// ingress entry (falling back to replacing the entry at the same rule
// number), then authorize the security group. There is no rollback, and a
// second run with an unchanged address always takes the replace path.
package authorizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/younsl/allowme/internal/models"
	"github.com/younsl/allowme/pkg/aws"
	"github.com/younsl/allowme/pkg/config"
	"github.com/younsl/allowme/pkg/ipecho"
)

const (
	layerNetworkACL    = "network-acl"
	layerSecurityGroup = "security-group"
)

// FallbackPolicy decides when a failed ACL entry create is retried as a replace
type FallbackPolicy int

const (
	// FallbackAlreadyExists replaces only when the rule number is already taken
	FallbackAlreadyExists FallbackPolicy = iota
	// FallbackAnyError replaces on every create failure
	FallbackAnyError
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackAlreadyExists:
		return "already-exists"
	case FallbackAnyError:
		return "any-error"
	default:
		return fmt.Sprintf("FallbackPolicy(%d)", int(p))
	}
}

// NetworkAPI is the set of EC2 operations a run issues
type NetworkAPI interface {
	CreateIngressEntry(ctx context.Context, entry aws.ACLEntry) error
	ReplaceIngressEntry(ctx context.Context, entry aws.ACLEntry) error
	AuthorizeIngress(ctx context.Context, groupID, cidr string) error
}

// Authorizer grants the caller's address ingress through both access-control layers
type Authorizer struct {
	cfg      config.Config
	network  NetworkAPI
	resolver ipecho.Resolver
	policy   FallbackPolicy
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures an Authorizer
type Option func(*Authorizer)

// WithFallbackPolicy overrides the default FallbackAlreadyExists policy
func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(a *Authorizer) { a.policy = p }
}

// WithLogger sets the logger each step reports to
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authorizer) { a.logger = l }
}

// New creates an Authorizer. cfg must already be validated.
func New(cfg config.Config, network NetworkAPI, resolver ipecho.Resolver, opts ...Option) *Authorizer {
	a := &Authorizer{
		cfg:      cfg,
		network:  network,
		resolver: resolver,
		policy:   FallbackAlreadyExists,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one authorization pass. The returned report is always
// non-nil; the error joins the failures of both layers.
func (a *Authorizer) Run(ctx context.Context) (*models.Report, error) {
	report := &models.Report{StartTime: a.now()}
	defer func() { report.Duration = a.now().Sub(report.StartTime) }()

	addr, err := a.resolver.Lookup(ctx)
	if err != nil {
		report.NetworkACL = skipped(layerNetworkACL, a.cfg.NetworkACLID)
		report.SecurityGroup = skipped(layerSecurityGroup, a.cfg.SecurityGroupID)
		return report, fmt.Errorf("error resolving public address: %w", err)
	}
	report.Target = models.IngressTarget{IP: addr.String(), CIDR: ipecho.HostCIDR(addr)}
	a.logger.Info().Str("cidr", report.Target.CIDR).Msg("resolved public address")

	report.NetworkACL = a.authorizeNetworkACL(ctx, report.Target.CIDR)

	// Issued once regardless of the ACL outcome
	report.SecurityGroup = a.authorizeSecurityGroup(ctx, report.Target.CIDR)

	return report, errors.Join(report.NetworkACL.Err, report.SecurityGroup.Err)
}

func (a *Authorizer) authorizeNetworkACL(ctx context.Context, cidr string) models.StepResult {
	entry := aws.ACLEntry{
		NetworkACLID: a.cfg.NetworkACLID,
		RuleNumber:   a.cfg.RuleNumber,
		CIDR:         cidr,
	}
	result := models.StepResult{
		Layer:      layerNetworkACL,
		ResourceID: entry.NetworkACLID,
		RuleNumber: entry.RuleNumber,
	}
	log := a.logger.With().Str("acl", entry.NetworkACLID).Int32("rule", entry.RuleNumber).Logger()

	createErr := a.network.CreateIngressEntry(ctx, entry)
	if createErr == nil {
		log.Info().Msg("network ACL entry created")
		result.Outcome = models.OutcomeCreated
		return result
	}

	if !a.shouldReplace(createErr) {
		log.Error().Err(createErr).Msg("network ACL entry create failed")
		result.Outcome = models.OutcomeFailed
		result.Err = createErr
		return result
	}

	log.Debug().Err(createErr).Str("policy", a.policy.String()).Msg("create failed, replacing entry")
	if err := a.network.ReplaceIngressEntry(ctx, entry); err != nil {
		log.Error().Err(err).Msg("network ACL entry replace failed")
		result.Outcome = models.OutcomeFailed
		result.Err = err
		return result
	}

	log.Info().Msg("network ACL entry replaced")
	result.Outcome = models.OutcomeReplaced
	return result
}

func (a *Authorizer) shouldReplace(createErr error) bool {
	if a.policy == FallbackAnyError {
		return true
	}
	return aws.IsACLEntryExists(createErr)
}

func (a *Authorizer) authorizeSecurityGroup(ctx context.Context, cidr string) models.StepResult {
	result := models.StepResult{
		Layer:      layerSecurityGroup,
		ResourceID: a.cfg.SecurityGroupID,
	}
	log := a.logger.With().Str("sg", a.cfg.SecurityGroupID).Logger()

	err := a.network.AuthorizeIngress(ctx, a.cfg.SecurityGroupID, cidr)
	switch {
	case err == nil:
		log.Info().Msg("security group ingress authorized")
		result.Outcome = models.OutcomeAuthorized
	case aws.IsDuplicatePermission(err):
		log.Info().Msg("security group already allows the address")
		result.Outcome = models.OutcomeAlreadyAuthorized
	default:
		log.Error().Err(err).Msg("security group authorization failed")
		result.Outcome = models.OutcomeFailed
		result.Err = err
	}
	return result
}

func skipped(layer, id string) models.StepResult {
	return models.StepResult{Layer: layer, ResourceID: id, Outcome: models.OutcomeSkipped}
}
