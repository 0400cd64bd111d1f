package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"label-ecg/internal/config"
)

// app carries what every sub-command needs once flags are parsed.
type app struct {
	configDir string
	v         *viper.Viper
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "labelecg",
		Short:         "LabelECG annotation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.v = config.New(a.configDir)
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config", "", "directory containing config.yaml")

	serve := serveCommand(a)
	root.AddCommand(serve, seedCommand(a))

	// Running the bare binary starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}
