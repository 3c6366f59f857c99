package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/younsl/allowme/pkg/config"
)

type setupOptions struct {
	aclID      string
	sgID       string
	region     string
	profile    string
	ruleNumber int32
	echoURL    string
}

func newSetupCmd(root *rootOptions, stdout io.Writer) *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Record the network ACL and security group to open",
		Example: `  allowme setup --acl-id acl-0123456789abcdef0 --sg-id sg-0fedcba9876543210 --region ap-northeast-2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(root.configPath)
			if err != nil {
				return err
			}

			cfg := config.Config{
				NetworkACLID:    opts.aclID,
				SecurityGroupID: opts.sgID,
				Region:          opts.region,
				Profile:         opts.profile,
				RuleNumber:      opts.ruleNumber,
				EchoURL:         opts.echoURL,
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Wrote configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.aclID, "acl-id", "", "Network ACL ID (acl-...)")
	cmd.Flags().StringVar(&opts.sgID, "sg-id", "", "Security group ID (sg-...)")
	cmd.Flags().StringVarP(&opts.region, "region", "r", "", "AWS region of the VPC")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "AWS shared config profile")
	cmd.Flags().Int32Var(&opts.ruleNumber, "rule-number", config.DefaultRuleNumber, "Network ACL rule number for the caller's address")
	cmd.Flags().StringVar(&opts.echoURL, "echo-url", "", fmt.Sprintf("Public address echo service (default %s)", config.DefaultEchoURL))
	_ = cmd.MarkFlagRequired("acl-id")
	_ = cmd.MarkFlagRequired("sg-id")

	return cmd
}
