package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/younsl/allowme/pkg/utils"
)

const (
	// DefaultRuleNumber is the network ACL rule slot the caller's address is written to
	DefaultRuleNumber int32 = 100

	// MaxRuleNumber is the highest rule number AWS accepts for a user-defined entry
	MaxRuleNumber int32 = 32766

	// DefaultEchoURL returns the caller's public IPv4 address as plain text
	DefaultEchoURL = "https://checkip.amazonaws.com"

	appDirName = "allowme"
	fileName   = "config.env"
)

// Environment-style keys understood in the config file
const (
	KeyNetworkACLID    = "NETWORK_ACL_ID"
	KeySecurityGroupID = "SECURITY_GROUP_ID"
	KeyRegion          = "AWS_REGION"
	KeyProfile         = "AWS_PROFILE"
	KeyRuleNumber      = "RULE_NUMBER"
	KeyEchoURL         = "ECHO_URL"
)

// ErrNotConfigured is returned when no config file exists yet
var ErrNotConfigured = errors.New("allowme is not configured")

// NotFoundError reports the config path that was looked up
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no config file at %s", ErrNotConfigured, e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotConfigured }

// ValidationError lists the config keys holding invalid values
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %v", strings.Join(e.Fields, ", "), e.err)
}

func (e *ValidationError) Unwrap() error { return e.err }

// Config holds the identifiers of the resources the caller's address is allowed through.
// It is passed explicitly to the authorizer; nothing reads it from the process environment.
type Config struct {
	NetworkACLID    string `env:"NETWORK_ACL_ID" validate:"required,startswith=acl-"`
	SecurityGroupID string `env:"SECURITY_GROUP_ID" validate:"required,startswith=sg-"`
	Region          string `env:"AWS_REGION" validate:"omitempty,awsregion"`
	Profile         string `env:"AWS_PROFILE"`
	RuleNumber      int32  `env:"RULE_NUMBER" validate:"min=1,max=32766"`
	EchoURL         string `env:"ECHO_URL" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("awsregion", func(fl validator.FieldLevel) bool {
		return utils.IsValidRegion(fl.Field().String())
	})
	return v
}

// DefaultPath returns the per-user config file location
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error locating user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, fileName), nil
}

// Load reads and validates the config file at path
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, &NotFoundError{Path: path}
		}
		return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	cfg, err := FromMap(values)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromMap builds a Config from environment-style key/value pairs.
// Missing optional keys take their defaults.
func FromMap(values map[string]string) (Config, error) {
	cfg := Config{
		NetworkACLID:    strings.TrimSpace(values[KeyNetworkACLID]),
		SecurityGroupID: strings.TrimSpace(values[KeySecurityGroupID]),
		Region:          strings.TrimSpace(values[KeyRegion]),
		Profile:         strings.TrimSpace(values[KeyProfile]),
		RuleNumber:      DefaultRuleNumber,
		EchoURL:         strings.TrimSpace(values[KeyEchoURL]),
	}

	if raw := strings.TrimSpace(values[KeyRuleNumber]); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Config{}, &ValidationError{Fields: []string{KeyRuleNumber}, err: err}
		}
		cfg.RuleNumber = int32(n)
	}

	return cfg, nil
}

// Validate checks that every required identifier is present and well formed
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("error validating configuration: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields, err: err}
}

// EchoEndpoint returns the configured echo URL or the default one
func (c Config) EchoEndpoint() string {
	if c.EchoURL == "" {
		return DefaultEchoURL
	}
	return c.EchoURL
}

// ToMap renders the config as environment-style key/value pairs, omitting empty optional keys
func (c Config) ToMap() map[string]string {
	values := map[string]string{
		KeyNetworkACLID:    c.NetworkACLID,
		KeySecurityGroupID: c.SecurityGroupID,
		KeyRuleNumber:      strconv.Itoa(int(c.RuleNumber)),
	}
	if c.Region != "" {
		values[KeyRegion] = c.Region
	}
	if c.Profile != "" {
		values[KeyProfile] = c.Profile
	}
	if c.EchoURL != "" {
		values[KeyEchoURL] = c.EchoURL
	}
	return values
}

// Save validates cfg and writes it to path, creating the parent directory if needed
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	content, err := godotenv.Marshal(cfg.ToMap())
	if err != nil {
		return fmt.Errorf("error encoding configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}
