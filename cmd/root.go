package cmd

import (
	"fmt"
	"os"

	"github.com/amarton5/SwiftOBD2/internal/cmd/root"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use: "swiftobd2",
	Run: root.Run,
}

func init() {
	cobra.OnInitialize(initLogger)

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().Bool("no-tui", false, "Run without TUI (print a summary and exit)")
	rootCmd.PersistentFlags().Bool("mock", false, "Use the scripted mock adapter")
	rootCmd.PersistentFlags().String("transport", "serial", "Adapter transport: serial or tcp")
	rootCmd.PersistentFlags().String("port", "", "Serial device (autodetected when empty)")
	rootCmd.PersistentFlags().Int("baud", 38400, "Baud rate for serial connection")
	rootCmd.PersistentFlags().String("addr", "192.168.0.10:35000", "Address of a Wi-Fi adapter")
	rootCmd.PersistentFlags().String("protocol", "", "Preferred protocol number (1-9, A); empty for auto")
	rootCmd.PersistentFlags().String("db", "swiftobd2.db", "Path of the seen-DTC database")
	rootCmd.PersistentFlags().String("mqtt-broker", "", "MQTT broker URL for session reports (disabled when empty)")
	rootCmd.PersistentFlags().String("mqtt-topic", "vehicle/diagnostics", "MQTT topic for session reports")

	for _, flag := range []string{
		"debug", "no-tui", "mock", "transport", "port", "baud",
		"addr", "protocol", "db", "mqtt-broker", "mqtt-topic",
	} {
		viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}

	viper.SetDefault("transport", "serial")
	viper.SetDefault("baud", 38400)
	viper.SetDefault("db", "swiftobd2.db")
}

func initLogger() {
	log.InitLogger(viper.GetBool("debug"))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
