package compare

import (
	"fmt"
	"sort"
)

// Registry holds the comparator assignments for a single comparison run.
// Comparators registered against a model name take precedence over global
// (every-model) registrations, which in turn take precedence over the default
// byte-equality check; only one comparator ever runs per field per record
// pair.
//
// A Registry is cheap to build and belongs to one Validate invocation: foreign
// key comparators get per-run primary key maps injected, so registries are not
// shared between concurrent comparisons.
type Registry struct {
	models map[string][]Comparator
	global []Comparator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string][]Comparator)}
}

// Register assigns comparators to a specific model.
func (r *Registry) Register(model string, comparators ...Comparator) {
	r.models[model] = append(r.models[model], comparators...)
}

// RegisterGlobal assigns comparators that govern their fields on every model
// unless a model-specific registration claims the field first.
func (r *Registry) RegisterGlobal(comparators ...Comparator) {
	r.global = append(r.global, comparators...)
}

// ForField resolves the single comparator governing a field of a model, if
// any, applying the specificity tie-break.
func (r *Registry) ForField(model, field string) (Comparator, bool) {
	for _, c := range r.models[model] {
		for _, f := range c.Fields() {
			if f == field {
				return c, true
			}
		}
	}
	for _, c := range r.global {
		for _, f := range c.Fields() {
			if f == field {
				return c, true
			}
		}
	}
	return nil, false
}

// ForeignKeyComparators returns every registered foreign key comparator so the
// validator can inject the per-side primary key maps.
func (r *Registry) ForeignKeyComparators() []*ForeignKeyComparator {
	var out []*ForeignKeyComparator
	models := make([]string, 0, len(r.models))
	for model := range r.models {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		for _, c := range r.models[model] {
			if fk, ok := c.(*ForeignKeyComparator); ok {
				out = append(out, fk)
			}
		}
	}
	for _, c := range r.global {
		if fk, ok := c.(*ForeignKeyComparator); ok {
			out = append(out, fk)
		}
	}
	return out
}

// DefaultRegistry returns the stock comparator assignments for the models the
// export pipeline emits. Timestamp bookkeeping fields are governed globally;
// everything else is registered per model. Callers extend the result with
// ApplyConfig.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterGlobal(
		NewDateUpdatedComparator("date_updated"),
		NewDatetimeEqualityComparator("date_added"),
	)

	r.Register("sentry.user",
		NewAutoSuffixComparator("username"),
		NewUserPasswordObfuscatingComparator("password"),
		NewHashObfuscatingComparator("session_nonce"),
		NewDateUpdatedComparator("last_active"),
		NewIgnoredComparator("last_login"),
	)
	r.Register("sentry.email",
		NewEmailObfuscatingComparator("email"),
	)
	r.Register("sentry.useremail",
		NewEmailObfuscatingComparator("email"),
		NewDateUpdatedComparator("date_hash_added"),
		NewIgnoredComparator("validation_hash", "is_verified"),
		NewForeignKeyComparator(map[string]string{"user": "sentry.user"}),
	)
	r.Register("sentry.organization",
		NewAutoSuffixComparator("slug", "name"),
	)
	r.Register("sentry.organizationmember",
		NewForeignKeyComparator(map[string]string{
			"organization": "sentry.organization",
			"user":         "sentry.user",
		}),
	)
	r.Register("sentry.project",
		NewAutoSuffixComparator("slug"),
		NewForeignKeyComparator(map[string]string{"organization": "sentry.organization"}),
	)
	r.Register("sentry.projectkey",
		NewSecretHexComparator(16, "public_key", "secret_key"),
		NewForeignKeyComparator(map[string]string{"project": "sentry.project"}),
	)
	r.Register("sentry.apitoken",
		NewSecretHexComparator(32, "token", "refresh_token"),
		NewForeignKeyComparator(map[string]string{"user": "sentry.user"}),
	)
	r.Register("sentry.apikey",
		NewSecretHexComparator(32, "key"),
		NewForeignKeyComparator(map[string]string{"organization": "sentry.organization"}),
	)
	r.Register("sentry.orgauthtoken",
		NewHashObfuscatingComparator("token_hashed", "token_last_characters"),
		NewForeignKeyComparator(map[string]string{"organization": "sentry.organization"}),
	)
	r.Register("sentry.querysubscription",
		NewSubscriptionIDComparator("subscription_id"),
		NewForeignKeyComparator(map[string]string{"project": "sentry.project"}),
	)
	r.Register("sentry.sentryapp",
		NewUUID4Comparator("uuid"),
		NewEmailObfuscatingComparator("creator_label"),
	)
	r.Register("sentry.sentryappinstallation",
		NewUUID4Comparator("uuid"),
	)
	r.Register("sentry.relay",
		NewUUID4Comparator("relay_id"),
	)
	r.Register("sentry.relayusage",
		NewUUID4Comparator("relay_id"),
	)

	return r
}

// SecretHexConfig declares a secret-hex assignment in configuration.
type SecretHexConfig struct {
	Bytes  int      `mapstructure:"bytes" yaml:"bytes"`
	Fields []string `mapstructure:"fields" yaml:"fields"`
}

// ModelComparatorConfig declares the comparator assignments for one model in
// configuration files.
type ModelComparatorConfig struct {
	AutoSuffix       []string          `mapstructure:"auto_suffix" yaml:"auto_suffix"`
	DatetimeEquality []string          `mapstructure:"datetime_equality" yaml:"datetime_equality"`
	DateUpdated      []string          `mapstructure:"date_updated" yaml:"date_updated"`
	EmailObfuscating []string          `mapstructure:"email_obfuscating" yaml:"email_obfuscating"`
	HashObfuscating  []string          `mapstructure:"hash_obfuscating" yaml:"hash_obfuscating"`
	UserPassword     []string          `mapstructure:"user_password" yaml:"user_password"`
	SecretHex        []SecretHexConfig `mapstructure:"secret_hex" yaml:"secret_hex"`
	SubscriptionID   []string          `mapstructure:"subscription_id" yaml:"subscription_id"`
	UUID4            []string          `mapstructure:"uuid4" yaml:"uuid4"`
	ForeignKey       map[string]string `mapstructure:"foreign_key" yaml:"foreign_key"`
	Ignored          []string          `mapstructure:"ignored" yaml:"ignored"`
}

// RegistryConfig maps model names (or "*" for every model) to comparator
// assignments declared in configuration.
type RegistryConfig map[string]ModelComparatorConfig

// ApplyConfig extends the registry with configured assignments. Configured
// comparators are appended after the stock ones, so stock registrations keep
// precedence for fields they already govern.
func (r *Registry) ApplyConfig(config RegistryConfig) error {
	models := make([]string, 0, len(config))
	for model := range config {
		models = append(models, model)
	}
	sort.Strings(models)

	for _, model := range models {
		mc := config[model]
		var comparators []Comparator
		if len(mc.AutoSuffix) > 0 {
			comparators = append(comparators, NewAutoSuffixComparator(mc.AutoSuffix...))
		}
		if len(mc.DatetimeEquality) > 0 {
			comparators = append(comparators, NewDatetimeEqualityComparator(mc.DatetimeEquality...))
		}
		if len(mc.DateUpdated) > 0 {
			comparators = append(comparators, NewDateUpdatedComparator(mc.DateUpdated...))
		}
		if len(mc.EmailObfuscating) > 0 {
			comparators = append(comparators, NewEmailObfuscatingComparator(mc.EmailObfuscating...))
		}
		if len(mc.HashObfuscating) > 0 {
			comparators = append(comparators, NewHashObfuscatingComparator(mc.HashObfuscating...))
		}
		if len(mc.UserPassword) > 0 {
			comparators = append(comparators, NewUserPasswordObfuscatingComparator(mc.UserPassword...))
		}
		for _, sh := range mc.SecretHex {
			if sh.Bytes <= 0 {
				return fmt.Errorf("secret_hex for model %q requires a positive byte length", model)
			}
			comparators = append(comparators, NewSecretHexComparator(sh.Bytes, sh.Fields...))
		}
		if len(mc.SubscriptionID) > 0 {
			comparators = append(comparators, NewSubscriptionIDComparator(mc.SubscriptionID...))
		}
		if len(mc.UUID4) > 0 {
			comparators = append(comparators, NewUUID4Comparator(mc.UUID4...))
		}
		if len(mc.ForeignKey) > 0 {
			comparators = append(comparators, NewForeignKeyComparator(mc.ForeignKey))
		}
		if len(mc.Ignored) > 0 {
			comparators = append(comparators, NewIgnoredComparator(mc.Ignored...))
		}

		if model == "*" {
			r.RegisterGlobal(comparators...)
		} else {
			r.Register(model, comparators...)
		}
	}

	return nil
}
