package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inodb/somamerge/internal/annotate"
	"github.com/inodb/somamerge/internal/reconcile"
)

const configName = ".somamerge"

// Configuration keys.
const (
	keyCallers         = "callers"
	keySamples         = "samples"
	keyInputDir        = "input_dir"
	keyOutputDir       = "output_dir"
	keyAnnotateColumn  = "annotate.column"
	keyAnnotateChrom   = "annotate.chrom_style"
	keyAnnotateWorkers = "annotate.workers"
	keyPanelPath       = "panel.path"
	keyPanelFormat     = "panel.format"
	keyDuckDBPath      = "duckdb.path"
)

// defaultCallers is the five-caller layout produced by the upstream calling pipeline.
var defaultCallers = []map[string]any{
	{"name": "MuTect2", "path": "Mutect2/{sample}/{sample}/{sample}_MuTect2_filtered_annotated.maf"},
	{"name": "MuTect", "path": "Mutect/{sample}/{sample}/{sample}_MuTect_filtered_annotated.maf"},
	{"name": "VarDict", "path": "Vardict/{sample}/{sample}/{sample}_VarDict_filtered_annotated.maf"},
	{"name": "VarScan", "path": "Varscan/{sample}/{sample}/{sample}_VarScan_annotated_with_counts.maf"},
	{"name": "Strelka", "path": "Strelka/{sample}/{sample}/Strelka/{sample}_Strelka_annotated.maf"},
}

func setDefaults() {
	viper.SetDefault(keyCallers, defaultCallers)
	viper.SetDefault(keyInputDir, ".")
	viper.SetDefault(keyOutputDir, ".")
	viper.SetDefault(keyAnnotateColumn, annotate.DefaultColumn)
	viper.SetDefault(keyAnnotateChrom, annotate.ChromStyleChr)
	viper.SetDefault(keyAnnotateWorkers, 1)
}

// initConfig reads cfgFile, or ~/.somamerge.yaml when cfgFile is empty.
// A missing default config file is not an error.
func initConfig(cfgFile string) error {
	setDefaults()
	viper.SetEnvPrefix("SOMAMERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	logger.Debug("using config file", zap.String("path", viper.ConfigFileUsed()))
	return nil
}

// bindFlags binds command flags to config keys so flags override config values.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for key, flag := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// configuredCallers returns the caller list with relative paths resolved
// against the input directory.
func configuredCallers() ([]reconcile.Caller, error) {
	var callers []reconcile.Caller
	if err := viper.UnmarshalKey(keyCallers, &callers); err != nil {
		return nil, fmt.Errorf("reading %s: %w", keyCallers, err)
	}
	inputDir := viper.GetString(keyInputDir)
	for i, c := range callers {
		if c.Path != "" && !filepath.IsAbs(c.Path) {
			callers[i].Path = filepath.Join(inputDir, c.Path)
		}
	}
	return callers, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage somamerge configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.somamerge.yaml.",
		Example: `  somamerge config                              # show all config
  somamerge config set panel.path gnomad.vcf.gz # set the reference panel
  somamerge config get annotate.workers         # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if viper.ConfigFileUsed() == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "# No config file found; showing defaults. Config file: ~/.somamerge.yaml")
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	if key == keyCallers {
		return usageErrorf("%s is a list; edit the config file directly", keyCallers)
	}
	viper.Set(key, value)

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, configName+".yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	if _, scalar := val.(string); !scalar {
		out, err := yaml.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", key, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
