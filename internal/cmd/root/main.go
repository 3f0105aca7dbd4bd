package root

import (
	"context"
	"fmt"

	"github.com/amarton5/SwiftOBD2/internal/displayer"
	"github.com/amarton5/SwiftOBD2/internal/obd"
	"github.com/amarton5/SwiftOBD2/internal/publisher"
	"github.com/amarton5/SwiftOBD2/internal/storage"
	"github.com/amarton5/SwiftOBD2/internal/transport"
	"github.com/amarton5/SwiftOBD2/internal/transport/mock"
	"github.com/amarton5/SwiftOBD2/internal/transport/serial"
	"github.com/amarton5/SwiftOBD2/internal/transport/tcp"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cmd *cobra.Command, args []string) {
	defer log.Sync()

	var link transport.Transport
	switch {
	case viper.GetBool("mock"):
		link = mock.New()
	case viper.GetString("transport") == "tcp":
		link = tcp.New(viper.GetString("addr"))
	default:
		link = serial.New(viper.GetString("port"), viper.GetInt("baud"))
	}

	engine := obd.New(link)
	engine.OnStateChange(func(s obd.ConnectionState) {
		log.Info("connection state changed", zap.Stringer("state", s))
	})

	ctx := context.Background()
	if err := engine.ConnectAdapter(ctx); err != nil {
		log.Fatal("failed to connect to adapter", zap.Error(err))
	}
	defer engine.Disconnect()

	preferred := obd.ProtocolFromNumber(viper.GetString("protocol"))
	info, err := engine.SetupVehicle(ctx, preferred)
	if err != nil {
		log.Fatal("vehicle setup failed", zap.Error(err))
	}
	log.Info("vehicle session established",
		zap.String("vin", info.VIN),
		zap.Stringer("protocol", info.Protocol),
		zap.Int("ecus", len(info.Roles)),
		zap.Int("supported", len(info.SupportedCommands)))

	codes, err := engine.ScanTroubleCodes(ctx)
	if err != nil {
		log.Fatal("trouble code scan failed", zap.Error(err))
	}
	recordCodes(codes)

	g, gctx := errgroup.WithContext(ctx)

	if broker := viper.GetString("mqtt-broker"); broker != "" {
		g.Go(func() error {
			return publishReport(gctx, info, codes)
		})
	}

	if viper.GetBool("no-tui") {
		printSummary(info, codes)
	} else {
		d := displayer.New(engine, info)
		g.Go(d.Run)
	}

	if err := g.Wait(); err != nil {
		log.Error("session ended with error", zap.Error(err))
	}
}

// recordCodes persists scanned codes and logs the ones not seen before.
func recordCodes(codes map[obd.ECURole][]obd.TroubleCode) {
	store, err := storage.Open(viper.GetString("db"))
	if err != nil {
		log.Warn("failed to open DTC store", zap.Error(err))
		return
	}
	defer store.Close()

	for role, tcs := range codes {
		for _, tc := range tcs {
			isNew, err := store.MarkSeen(tc.Code)
			if err != nil {
				log.Warn("failed to record trouble code", zap.String("code", tc.Code), zap.Error(err))
				continue
			}
			if isNew {
				log.Info("new trouble code",
					zap.String("code", tc.Code),
					zap.Stringer("ecu", role),
					zap.String("description", tc.Description))
			}
		}
	}
}

func publishReport(ctx context.Context, info *obd.Info, codes map[obd.ECURole][]obd.TroubleCode) error {
	p := publisher.New(publisher.Config{
		Broker: viper.GetString("mqtt-broker"),
		Topic:  viper.GetString("mqtt-topic"),
	})
	if err := p.Connect(); err != nil {
		return err
	}
	defer p.Close()
	return p.Publish(info, codes)
}

func printSummary(info *obd.Info, codes map[obd.ECURole][]obd.TroubleCode) {
	fmt.Printf("VIN:       %s\n", info.VIN)
	fmt.Printf("Protocol:  %s\n", info.Protocol)
	fmt.Printf("ECUs:      %d\n", len(info.Roles))
	fmt.Printf("Supported: %v\n", info.SupportedCommands)

	fmt.Println("Current DTC Error Codes:")
	if len(codes) == 0 {
		fmt.Println("No error codes.")
		return
	}
	for role, tcs := range codes {
		for _, tc := range tcs {
			fmt.Printf("- [%s] %s: %s\n", role, tc.Code, tc.Description)
		}
	}
}
