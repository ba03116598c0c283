package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/myolink/internal/acquisition"
	"github.com/banshee-data/myolink/internal/actuator"
	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/config"
	"github.com/banshee-data/myolink/internal/db"
	"github.com/banshee-data/myolink/internal/features"
	"github.com/banshee-data/myolink/internal/monitoring"
	"github.com/banshee-data/myolink/internal/recorder"
	"github.com/banshee-data/myolink/internal/sensorlink"
	"github.com/banshee-data/myolink/internal/version"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acquisition loop until interrupted",
		Long: `Run connects to the sensor and loops read, classify, act until SIGINT or
SIGTERM, or until the sensor link fails for good.

Settings come from the YAML file given with --config and from MYOLINK_*
environment variables, for example MYOLINK_SENSOR_PORT=/dev/ttyUSB0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	logger, err := monitoring.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	restore := monitoring.Install(logger)
	defer restore()

	session := uuid.NewString()
	logger = logger.With(zap.String("session", session))
	logger.Info("starting", zap.String("version", version.Version))

	metrics := monitoring.NewMetrics()

	model, err := classifier.Load(cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	decode, err := features.DecoderFor(cfg.Sensor.SampleFormat)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg, session, stdout)
	if err != nil {
		return err
	}
	defer closeSink()
	dispatcher := actuator.NewDispatcher(sink, logger, func(error) { metrics.DispatchErrors.Inc() })

	labels, err := labelSource(ctx, cfg, stdin, logger)
	if err != nil {
		return err
	}

	// from here on the loop owns and closes the logs, the mirror and the link
	timing, err := recorder.OpenTimingLog(cfg.Logs.TimingPath, cfg.Logs.FlushEvery)
	if err != nil {
		return err
	}
	training, err := recorder.OpenTrainingLog(cfg.Logs.TrainingPath, cfg.Logs.FlushEvery)
	if err != nil {
		timing.Close()
		return err
	}

	var mirror acquisition.Mirror
	if cfg.Logs.DBPath != "" {
		w, err := openMirror(ctx, cfg, session, metrics)
		if err != nil {
			timing.Close()
			training.Close()
			return err
		}
		mirror = w
	}

	link := sensorlink.New(sensorlink.Config{
		Path:        cfg.Sensor.Port,
		Options:     cfg.PortOptions(),
		WindowSize:  cfg.Sensor.WindowSize,
		ReadTimeout: cfg.Sensor.ReadTimeout,
	}, sensorlink.OpenSerial, nil)

	loop, err := acquisition.New(acquisition.Deps{
		Link:        link,
		Classifier:  model,
		Dispatcher:  dispatcher,
		TimingLog:   timing,
		TrainingLog: training,
		Decode:      decode,
		Labels:      labels,
		Mirror:      mirror,
		Logger:      logger,
		Metrics:     metrics,
	}, acquisition.Options{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		SessionID:      session,
	})
	if err != nil {
		timing.Close()
		training.Close()
		if mirror != nil {
			mirror.Close()
		}
		return err
	}

	if cfg.Metrics.Listen != "" {
		status := func() monitoring.Status {
			return monitoring.Status{
				State:   loop.State().String(),
				Cycles:  loop.Cycles(),
				Session: session,
				Version: version.Version,
			}
		}
		shutdown := serveMetrics(cfg.Metrics.Listen, monitoring.NewServeMux(metrics, status), logger)
		defer shutdown()
	}

	if err := loop.Run(ctx); err != nil {
		logger.Error("acquisition failed", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete", zap.Uint64("cycles", loop.Cycles()))
	return nil
}

// openSink builds the configured actuator sink and a function releasing it.
func openSink(cfg *config.Config, session string, stdout io.Writer) (actuator.Sink, func(), error) {
	switch cfg.Actuator.Sink {
	case config.SinkSerial:
		port, err := sensorlink.OpenSerial(cfg.Actuator.SerialPort, sensorlink.PortOptions{BaudRate: cfg.Actuator.SerialBaud})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open actuator port: %w", err)
		}
		return actuator.NewSerialSink(port), func() { port.Close() }, nil
	case config.SinkMQTT:
		client, err := actuator.ConnectMQTT(cfg.Actuator.MQTTBroker, "myolink-"+session, cfg.Actuator.MQTTTimeout)
		if err != nil {
			return nil, nil, err
		}
		sink := actuator.NewMQTTSink(client, cfg.Actuator.MQTTTopic, byte(cfg.Actuator.MQTTQoS), cfg.Actuator.MQTTTimeout)
		return sink, func() { client.Disconnect(250) }, nil
	default:
		return actuator.NewLogSink(stdout), func() {}, nil
	}
}

func labelSource(ctx context.Context, cfg *config.Config, stdin io.Reader, logger *zap.Logger) (recorder.LabelSource, error) {
	initial := classifier.Label(cfg.Labels.Constant)
	if !initial.Known() {
		return nil, fmt.Errorf("labels.constant %d is not a known label", cfg.Labels.Constant)
	}
	if cfg.Labels.Source != config.LabelsOperator {
		logger.Warn("training rows use a constant placeholder label", zap.Int("label", int(initial)))
		return recorder.ConstantLabel(initial), nil
	}

	labels := recorder.NewOperatorLabels(initial, logger)
	go func() {
		if err := labels.Run(ctx, stdin); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("operator label input stopped", zap.Error(err))
		}
	}()
	logger.Info("reading operator labels from stdin", zap.Int("initial", int(initial)))
	return labels, nil
}

func openMirror(ctx context.Context, cfg *config.Config, session string, metrics *monitoring.Metrics) (acquisition.Mirror, error) {
	store, err := db.NewDB(cfg.Logs.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cycle database: %w", err)
	}
	if err := store.RecordSession(ctx, db.Session{
		ID:         session,
		StartedAt:  time.Now(),
		SensorPort: cfg.Sensor.Port,
		ModelPath:  cfg.Model.Path,
		Version:    version.Version,
	}); err != nil {
		store.Close()
		return nil, err
	}

	w := db.NewWriter(store, db.DefaultQueueSize, metrics.StoreDropped.Inc)
	w.Start()
	return &closingWriter{Writer: w, store: store}, nil
}

// closingWriter closes the database once the writer has drained.
type closingWriter struct {
	*db.Writer
	store *db.DB
}

func (c *closingWriter) Close() error {
	return errors.Join(c.Writer.Close(), c.store.Close())
}

func serveMetrics(addr string, handler http.Handler, logger *zap.Logger) func() {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
		}
	}
}
