// Package main is the protonet demo client entrypoint. It connects to a
// server, runs the update loop at a fixed tick rate and logs every state
// transition.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jxsl13/protonet/client"
	"github.com/jxsl13/protonet/connection"
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
	"github.com/jxsl13/protonet/resolver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

var (
	flagBindAddr           string
	flagLogLevel           string
	flagTickRate           float64
	flagConnectingSendRate float64
	flagConnectedSendRate  float64
	flagConnectingTimeOut  float64
	flagConnectedTimeOut   float64
	flagDefaultServerPort  uint16
	flagClientDataFile     string
	flagMaxServerDataSize  int
	flagFragmentSize       int
	flagFragmentsPerSecond float64
)

var rootCmd = &cobra.Command{
	Use:   "protonet-client <address or hostname>",
	Short: "Connects a protonet client to a server and reports its state.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClient,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagBindAddr, "bind", "0.0.0.0:0", "local bind address")
	flags.StringVar(&flagLogLevel, "log-level", "info", "trace, debug, info, warn or error")
	flags.Float64Var(&flagTickRate, "tick-rate", 60, "update ticks per second")
	flags.Float64Var(&flagConnectingSendRate, "connecting-send-rate", client.DefaultConnectingSendRate, "packets per second while connecting")
	flags.Float64Var(&flagConnectedSendRate, "connected-send-rate", client.DefaultConnectedSendRate, "packets per second while connected")
	flags.Float64Var(&flagConnectingTimeOut, "connecting-timeout", client.DefaultConnectingTimeOut, "seconds of silence before a connect attempt fails")
	flags.Float64Var(&flagConnectedTimeOut, "connected-timeout", client.DefaultConnectedTimeOut, "seconds of silence before a session times out")
	flags.Uint16Var(&flagDefaultServerPort, "default-server-port", client.DefaultServerPort, "port applied to resolved addresses without one")
	flags.StringVar(&flagClientDataFile, "client-data", "", "file uploaded to the server during the handshake")
	flags.IntVar(&flagMaxServerDataSize, "max-server-data-size", 0, "accept up to this many bytes of server data, 0 disables")
	flags.IntVar(&flagFragmentSize, "fragment-size", protocol.MaxFragmentSize, "block transfer fragment size")
	flags.Float64Var(&flagFragmentsPerSecond, "fragments-per-second", client.DefaultFragmentsPerSecond, "block transfer send rate")
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	default:
		logrus.SetLevel(logrus.ErrorLevel)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	setLogLevel(flagLogLevel)

	iface, err := network.NewUDPInterface(flagBindAddr)
	if err != nil {
		return errors.Wrap(err, "bind udp interface")
	}
	defer iface.Close()

	structure, err := connection.NewChannelStructure(
		connection.ChannelConfig{Name: "control", Reliable: true},
		connection.ChannelConfig{Name: "state", Reliable: false},
	)
	if err != nil {
		return errors.Wrap(err, "build channel structure")
	}

	var clientData []byte
	if flagClientDataFile != "" {
		clientData, err = os.ReadFile(flagClientDataFile)
		if err != nil {
			return errors.Wrap(err, "read client data")
		}
	}

	cfg := client.Config{
		NetworkInterface:   iface,
		ChannelStructure:   structure,
		Resolver:           resolver.NewNetResolver(),
		ConnectingSendRate: flagConnectingSendRate,
		ConnectedSendRate:  flagConnectedSendRate,
		ConnectingTimeOut:  flagConnectingTimeOut,
		ConnectedTimeOut:   flagConnectedTimeOut,
		DefaultServerPort:  flagDefaultServerPort,
		MaxServerDataSize:  flagMaxServerDataSize,
		ClientData:         clientData,
		FragmentsPerSecond: flagFragmentsPerSecond,
	}
	if clientData != nil || flagMaxServerDataSize > 0 {
		cfg.FragmentSize = flagFragmentSize
	}

	c, err := client.NewClient(cfg)
	if err != nil {
		return errors.Wrap(err, "create client")
	}

	logger.WithField("target", args[0]).Info("connecting")
	c.Connect(args[0])

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var (
		tickDuration = time.Duration(float64(time.Second) / flagTickRate)
		ticker       = time.NewTicker(tickDuration)
		start        = time.Now()
		timeBase     protocol.TimeBase
		lastState    = c.GetState()
		serverData   bool
	)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			logger.Info("interrupted, disconnecting")
			c.Disconnect()
			return nil

		case <-ticker.C:
			now := time.Since(start).Seconds()
			timeBase.DeltaTime = now - timeBase.Time
			timeBase.Time = now
			c.Update(timeBase)

			if state := c.GetState(); state != lastState {
				logger.WithFields(logrus.Fields{
					"from": lastState.String(),
					"to":   state.String(),
				}).Info("state changed")
				lastState = state
			}

			if !serverData && c.GetServerData() != nil {
				logger.WithField("bytes", len(c.GetServerData())).Info("received server data")
				serverData = true
			}

			if c.HasError() {
				return errors.Errorf("client error: %s (extended %d)",
					c.GetError(), c.GetExtendedError())
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
