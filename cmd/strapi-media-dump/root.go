/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/strapi-media-dump/strapi"
	"gopkg.in/yaml.v2"
)

var (
	// Store the result of binding cobra flags
	Config       string
	ConfigActual string
	Debug        bool

	// Command to run to retrieve a Strapi API token
	AuthTokenCmd []string

	LocalStore string
	APIURL     string

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "strapi-media-dump",
	Short: "Download the media referenced by Strapi content",
	Long: `
Feed it a batch of Strapi entries and it downloads every image and file they refer to, whether in
media fields, embedded in rich text, or buried in components, dynamic zones and relations.  Each
file is fetched once and kept in a local store; entries come back with local file ids attached.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(Debug)

		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("strapi-media-dump: failed to initialise config: %w", err)
		}
		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: ~/.config/strapi-media-dump.yaml, respects STRAPI_MEDIA_DUMP_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().StringSliceVar(&AuthTokenCmd, "auth-token-cmd", []string{}, "shell command to retrieve the Strapi API token")
	rootCmd.PersistentFlags().StringVar(&LocalStore, "store", "", "location to save downloaded media")
	rootCmd.PersistentFlags().StringVar(&APIURL, "api-url", "", "your Strapi URL, e.g. https://cms.example.com")
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := Config != ""
	if Config == "" {
		// Did the user provide an ENV?
		envConfig := os.Getenv("STRAPI_MEDIA_DUMP_CONFIG")
		if envConfig != "" {
			Config = envConfig
			explicit = true
		} else {
			// As fallback, search for config in home XDG-ish directory
			Config = "~/.config/strapi-media-dump.yaml"
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("strapi-media-dump: unable to expand homedir: %w", err)
	}
	ConfigActual = config

	if _, err := os.Stat(ConfigActual); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return fmt.Errorf("strapi-media-dump: specified config file does not exist: %w", err)
		}
		// no config file is fine, flags will do.
		return nil
	}

	yamlFile, err := os.ReadFile(ConfigActual)
	if err != nil {
		return fmt.Errorf("strapi-media-dump: error reading config file: %w", err)
	}

	// I'd like to bark if a user sets a key we don't recognise:
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("strapi-media-dump: issue parsing config file: %w", err)
	}

	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("strapi-media-dump: failed to bind flags: %w", err)
	}

	return nil
}

type YamlConfig struct {
	WithVCR    *bool `yaml:"with-vcr"`
	HTMLImages *bool `yaml:"html-images"`
	Prune      *bool `yaml:"prune"`
	Workers    *int  `yaml:"workers"`

	StorePath    string   `yaml:"store"`
	APIURL       string   `yaml:"api-url"`
	AuthTokenCmd []string `yaml:"auth-token-cmd"`
	Schemas      []string `yaml:"schemas"`

	RemoteFileHeaders map[string]string `yaml:"remote-file-headers"`
}

// Bind each config file value onto its cobra flag, unless the flag was given on the command line.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("strapi-media-dump: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// the flag is unknown, which is legitimate: `list content-types` has no `prune` flag
			// but your YAML file may well define it.
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		switch field.Kind() {
		case reflect.Ptr:
			switch p := field.Value().(type) {
			case *bool:
				if p != nil {
					if err := cmd.Flags().Set(key, fmt.Sprintf("%v", *p)); err != nil {
						return fmt.Errorf("strapi-media-dump: bad value for %s: %w", key, err)
					}
				}
			case *int:
				if p != nil {
					if err := cmd.Flags().Set(key, fmt.Sprintf("%d", *p)); err != nil {
						return fmt.Errorf("strapi-media-dump: bad value for %s: %w", key, err)
					}
				}
			default:
				return fmt.Errorf("strapi-media-dump: found unrecognised field: %+v", field)
			}

		case reflect.String:
			s, ok := field.Value().(string)
			if !ok {
				return fmt.Errorf("strapi-media-dump: found unrecognised field: %+v", field)
			}
			if s != "" {
				if err := cmd.Flags().Set(key, s); err != nil {
					return fmt.Errorf("strapi-media-dump: bad value for %s: %w", key, err)
				}
			}

		case reflect.Slice:
			ss, ok := field.Value().([]string)
			if !ok {
				return fmt.Errorf("strapi-media-dump: found unrecognised field: %+v", field)
			}
			for _, s := range ss {
				// yes, repeatedly calling Set() appends to the slice...
				if err := cmd.Flags().Set(key, s); err != nil {
					return fmt.Errorf("strapi-media-dump: bad value for %s: %w", key, err)
				}
			}

		case reflect.Map:
			m, ok := field.Value().(map[string]string)
			if !ok {
				return fmt.Errorf("strapi-media-dump: found unrecognised field: %+v", field)
			}
			for k, val := range m {
				// ... and so does it for maps.
				if err := cmd.Flags().Set(key, k+"="+val); err != nil {
					return fmt.Errorf("strapi-media-dump: bad value for %s: %w", key, err)
				}
			}

		default:
			return fmt.Errorf("strapi-media-dump: found unrecognised field: %+v", field)
		}
	}

	return nil
}

// newAPI builds the Strapi client from the global flags, running --auth-token-cmd if given.
func newAPI() (*strapi.API, error) {
	token := ""
	if len(AuthTokenCmd) > 0 {
		tokenCmdOutput, err := exec.Command(AuthTokenCmd[0], AuthTokenCmd[1:]...).Output()
		if err != nil {
			return nil, fmt.Errorf("strapi-media-dump: couldn't execute auth-token-cmd '%v': %w", AuthTokenCmd, err)
		}
		token = strings.Split(string(tokenCmdOutput), "\n")[0]
	}

	api, err := strapi.NewAPI(APIURL, token)
	if err != nil {
		return nil, fmt.Errorf("strapi-media-dump: couldn't instantiate Strapi API: %w", err)
	}
	return api, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("strapi-media-dump: execution error: %w", err)
	}

	return nil
}
