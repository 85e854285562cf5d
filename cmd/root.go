/*
Package cmd implements the docprovider command line: serving the document
namespace over HTTP or MCP, browsing it in the terminal, and one-shot
document operations against a local or remote namespace.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/docprovider/pkg/config"
	"github.com/theapemachine/docprovider/pkg/logging"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the service,
which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

var (
	projectName = "docprovider"
	cfgFile     string
	logLevel    string
	cfg         *config.Config

	rootCmd = &cobra.Command{
		Use:           projectName,
		Short:         "Expose directory trees as a hierarchical document namespace",
		Long:          longRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}
)

/*
Execute is the main entry point for the CLI.
*/
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error("command failed", "error", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)

	rootCmd.PersistentFlags().StringVar(
		&logLevel,
		"log-level",
		"",
		"override log.level from the config file",
	)
}

/*
initConfig writes the default config file to the user's home directory if
it doesn't exist, and then reads it. A --config naming an existing file is
read directly.
*/
func initConfig() {
	if CheckFileExists(cfgFile) && filepath.Base(cfgFile) != cfgFile {
		viper.SetConfigFile(cfgFile)
	} else {
		if err := writeConfig(); err != nil {
			log.Fatal("failed to write default config", "error", err)
		}

		home, _ := os.UserHomeDir()
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(filepath.Join(home, "."+projectName))
	}

	viper.SetEnvPrefix("DOCPROVIDER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("failed to read config", "error", err)
	}
}

func loadConfig() error {
	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	if logLevel != "" {
		loaded.Log.Level = logLevel
	}

	if err := logging.Init(loaded.Log.Level, loaded.Log.Format, loaded.Log.File); err != nil {
		return err
	}

	log.Debug("loaded config", "file", viper.ConfigFileUsed(), "roots", len(loaded.Roots))
	cfg = loaded

	return nil
}

/*
writeConfig writes the default config file to the user's home directory.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := filepath.Join(home, "."+projectName)
	if !CheckFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	fullPath := filepath.Join(configDir, "config.yml")

	if CheckFileExists(fullPath) {
		return nil
	}

	if fh, err = embedded.Open("cfg/config.yml"); err != nil {
		return fmt.Errorf("failed to open embedded config file: %w", err)
	}
	defer fh.Close()

	if _, err = io.Copy(&buf, fh); err != nil {
		return fmt.Errorf("failed to read embedded config file: %w", err)
	}

	if err = os.WriteFile(fullPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info("wrote config file", "path", fullPath)
	return nil
}

func CheckFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

var longRoot = `
docprovider exposes configured directory trees as a hierarchical namespace of
documents addressed by opaque IDs. Serve it over JSON-RPC, REST, SSE and MCP,
browse it in the terminal, or run single operations from the shell.
`
