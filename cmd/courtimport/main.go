// Command courtimport loads daily court case extracts into the case database.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/caseload-importer/internal/config"
	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

func main() {
	var configFile string
	var logLevel string

	var cfg *config.Config
	var cmdRoot = &cobra.Command{
		Use:   "courtimport",
		Short: "Court case extract importer",
		Long:  `Initiate, process and inspect imports of daily court case CSV extracts`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadFromEnv(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				c.Logging.Level = logLevel
			}
			if err := c.Validate(); err != nil {
				return err
			}
			logger.Configure(c.Logging.Level, c.Logging.Format)
			cfg = c
			return nil
		},
	}
	cmdRoot.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "load configuration from file")
	cmdRoot.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	conf := func() *config.Config { return cfg }
	cmdRoot.AddCommand(cmdInitiate(conf))
	cmdRoot.AddCommand(cmdProcess(conf))
	cmdRoot.AddCommand(cmdRun(conf))
	cmdRoot.AddCommand(cmdWorker(conf))
	cmdRoot.AddCommand(cmdStatus(conf))
	cmdRoot.AddCommand(cmdHistory(conf))
	cmdRoot.AddCommand(cmdDiscover(conf))
	cmdRoot.AddCommand(cmdMigrate(conf))

	err := cmdRoot.Execute()
	_ = logger.Default().Sync()
	if err != nil {
		os.Exit(1)
	}
}
