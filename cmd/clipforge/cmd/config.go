package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing clipforge configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  clipforge config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/clipforge, $HOME/.clipforge)
  - Environment variables (CLIPFORGE_SERVER_PORT, CLIPFORGE_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the CLIPFORGE_ prefix and underscores for nesting.
Example: server.port -> CLIPFORGE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Defaults only, no file and no validation: the default secret key is
	// intentionally empty and would fail a validated Load.
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	if err := v.Unmarshal(&cfg, config.DecodeHooks()); err != nil {
		return fmt.Errorf("unmarshaling defaults: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(&cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# clipforge Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   CLIPFORGE_SERVER_HOST, CLIPFORGE_SERVER_PORT")
	fmt.Println("#   CLIPFORGE_DATABASE_DRIVER, CLIPFORGE_DATABASE_DSN")
	fmt.Println("#   CLIPFORGE_STORAGE_BASE_DIR, CLIPFORGE_AUTH_SECRET_KEY")
	fmt.Println("#   CLIPFORGE_LOGGING_LEVEL, CLIPFORGE_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
