package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		AnthropicAPIKey:       "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		APIToken:              "test-token-123",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
	if c.AnthropicAPIKey != "" {
		t.Errorf("AnthropicAPIKey = %q, want empty", c.AnthropicAPIKey)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/queries",
		"-anthropic-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
		"-api-token", "tok",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/queries" {
		t.Errorf("DatabaseURL = %q, want %q", c.DatabaseURL, "postgres://localhost/queries")
	}
	if c.AnthropicAPIKey != "sk-override" {
		t.Errorf("AnthropicAPIKey = %q, want %q", c.AnthropicAPIKey, "sk-override")
	}
	if c.ClaudeModel != "claude-opus-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-opus-4-20250514")
	}
	if c.APIToken != "tok" {
		t.Errorf("APIToken = %q, want %q", c.APIToken, "tok")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1, APIToken: "t",
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535, APIToken: "t",
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       Config{DrainSeconds: 0, ShutdownBudgetSeconds: 90, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       Config{DrainSeconds: -1, ShutdownBudgetSeconds: 90, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       Config{DrainSeconds: 301, ShutdownBudgetSeconds: 302, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     Config{DrainSeconds: 300, ShutdownBudgetSeconds: 300, APIPort: 8080, APIToken: "t"},
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 0, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 301, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 60, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "budget less than drain",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 30, APIPort: 8080, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 0, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 65536, APIToken: "t"},
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// String fields
		{
			name:      "empty api token",
			cfg:       Config{DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 8080, APIToken: ""},
			wantErr:   true,
			errSubstr: []string{"API_TOKEN"},
		},
		{
			name: "api key without model",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 8080,
				APIToken: "t", AnthropicAPIKey: "sk-k", ClaudeModel: "",
			},
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name: "no api key and no model is fine",
			cfg: Config{
				DrainSeconds: 60, ShutdownBudgetSeconds: 90, APIPort: 8080, APIToken: "t",
			},
			wantErr: false,
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{DrainSeconds: 0, ShutdownBudgetSeconds: 0, APIPort: 0},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "API_TOKEN"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		key, model, token   string
	}{
		{60, 90, 8080, "sk-test", "claude-sonnet", "tok"},
		{1, 2, 1, "k", "m", "t"},
		{299, 300, 65535, "k", "m", "t"},
		{0, 0, 0, "", "", ""},
		{-1, -1, -1, "", "", ""},
		{300, 300, 65535, "k", "m", "t"},
		{301, 302, 65536, "", "", ""},
		{150, 100, 8080, "k", "m", "t"},
		{60, 90, 8080, "k", "", "t"},
		{math.MinInt32, math.MinInt32, math.MinInt32, "", "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.key, s.model, s.token)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, key, model, token string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			AnthropicAPIKey:       key,
			ClaudeModel:           model,
			APIToken:              token,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		tokenOK := token != ""
		modelOK := key == "" || model != ""

		allValid := drainOK && budgetOK && portOK && crossOK && tokenOK && modelOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
