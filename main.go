package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"captionkit/controlplane"
	"captionkit/core"
	"captionkit/factories"
	"captionkit/hotkey"
	"captionkit/metrics"
	"captionkit/session"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	var connectURL, settingsPath string
	flag.StringVar(&connectURL, "connect", "", "WebSocket URL of the caption UI control plane (e.g. ws://localhost:8888/ws/agent)")
	flag.StringVar(&settingsPath, "settings", "", "settings file (.json, .yaml or .yml); defaults to $SETTINGS_PATH or ./settings.json")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}

	settings := loadSettings(settingsPath)
	logger, err := settings.Logger()
	if err != nil {
		core.GetLogger().Error("invalid logging settings", "error", err)
		os.Exit(1)
	}
	core.SetLogger(*logger)
	logger = core.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, settings, connectURL, logger); err != nil {
		logger.Error("captionkit stopped with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutting down...")
}

func run(ctx context.Context, cancel context.CancelFunc, settings factories.SettingsConfig, connectURL string, logger *core.Logger) error {
	sessionID := uuid.New().String()
	sessionLogger := logger.With(map[string]any{"session_id": sessionID})

	m := metrics.NewMetrics()
	if settings.MetricsAddr != "" {
		srv := serveMetrics(settings.MetricsAddr, m, logger)
		defer srv.Close()
	}

	sessionCfg, err := settings.SessionConfig()
	if err != nil {
		return err
	}
	providers, err := settings.BuildProviders(sessionLogger)
	if err != nil {
		return err
	}
	devices, err := settings.Transport.BuildDevices(ctx, m, sessionLogger)
	if err != nil {
		return fmt.Errorf("join call: %w", err)
	}
	defer devices.Close()

	var client *controlplane.Client
	if connectURL != "" {
		client, err = connectControlPlane(ctx, cancel, connectURL, settings, devices, logger)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	if writer := sessionLogWriter(settings, client, sessionID, devices); writer != nil {
		defer writer.Close()
		sessionLogger = core.NewSessionLogger(logger, writer).With(map[string]any{"session_id": sessionID})
	}

	sess := session.New(sessionCfg, settings.Dependencies(devices, providers, m, sessionLogger))
	if client != nil {
		sess.BindControlPlane(ctx, client)
	} else {
		sess.SetListener(consoleListener(sessionLogger))
	}

	ctx = core.ContextWithSessionLogger(ctx, sessionLogger)
	if err := sess.Start(ctx); err != nil {
		var de *core.DeviceError
		if errors.As(err, &de) {
			return fmt.Errorf("microphone unavailable, check device permissions: %w", err)
		}
		return err
	}
	defer sess.Stop()

	if settings.Hotkey.Combo != "" {
		listener := hotkey.NewListener(settings.Hotkey.Combo, settings.Hotkey.Mode, func(down bool) {
			if err := sess.PushToTalk(down); err != nil {
				sessionLogger.Debug("push to talk ignored", "error", err)
			}
		})
		go listener.Start()
		defer listener.Stop()
		sessionLogger.Info("push-to-talk hotkey active", "keys", listener.Keys(), "mode", settings.Hotkey.Mode)
	}

	<-ctx.Done()
	return nil
}

func connectControlPlane(ctx context.Context, cancel context.CancelFunc, connectURL string, settings factories.SettingsConfig, devices factories.Devices, logger *core.Logger) (*controlplane.Client, error) {
	agentID := os.Getenv("AGENT_ID")
	if agentID == "" {
		agentID, _ = os.Hostname()
	}
	cfg := controlplane.ClientConfig{
		ConnectURL: connectURL,
		AgentID:    agentID,
		Version:    version,
		Metadata: map[string]string{
			"speaker_name": settings.SpeakerName,
		},
		Logger: logger,
	}
	if devices.DataChannel != nil {
		cfg.Identity = devices.DataChannel.LocalIdentity()
	}
	if lk := settings.Transport.LiveKitConfig; lk != nil {
		cfg.RoomName = lk.RoomName
	}

	client := controlplane.NewClient(cfg)
	client.OnShutdown = func(reason string) {
		logger.Info("shutdown requested by control plane", "reason", reason)
		cancel()
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	go func() {
		client.Wait()
		logger.Info("control plane connection lost, shutting down")
		cancel()
	}()
	return client, nil
}

// sessionLogWriter streams logs to the UI when connected, else to log_dir.
func sessionLogWriter(settings factories.SettingsConfig, client *controlplane.Client, sessionID string, devices factories.Devices) core.LogWriter {
	if client != nil {
		return controlplane.NewLogStream(client, sessionID)
	}
	if settings.LogDir == "" {
		return nil
	}
	meta := core.SessionMetadata{SessionID: sessionID}
	if devices.DataChannel != nil {
		meta.Identity = devices.DataChannel.LocalIdentity()
	}
	if lk := settings.Transport.LiveKitConfig; lk != nil {
		meta.RoomName = lk.RoomName
	}
	writer, err := core.NewSessionLogWriter(settings.LogDir, meta)
	if err != nil {
		core.GetLogger().Warn("session log disabled", "error", err)
		return nil
	}
	return writer
}

func consoleListener(logger *core.Logger) session.Listener {
	return session.Listener{
		OnCaption: func(c core.Caption, remote bool) {
			fmt.Printf("[%s] %s: %s\n", c.Timestamp.Format(time.TimeOnly), c.SpeakerName, c.TranslatedText)
		},
		OnWarning: func(stage, message string) {
			logger.Warn("pipeline warning", "stage", stage, "message", message)
		},
	}
}

func serveMetrics(addr string, m *metrics.Metrics, logger *core.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

// loadSettings reads SETTINGS_JSON_B64, then the settings file, falling back
// to defaults. API keys always come from the environment.
func loadSettings(path string) factories.SettingsConfig {
	logger := core.GetLogger()
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		settings, err = factories.SettingsConfigFromBase64(b64)
		if err != nil {
			logger.With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			logger.Info("loaded settings from SETTINGS_JSON_B64")
		}
	} else {
		if path == "" {
			path = getEnv("SETTINGS_PATH", "./settings.json")
		}
		settings, err = factories.SettingsConfigFromFile(path)
		if err != nil {
			logger.With(map[string]any{"path": path, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}

	settings.Transport.InjectProviderKeys(factories.ProviderKeys{
		LiveKitURL:       os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		LiveKitToken:     os.Getenv("LIVEKIT_TOKEN"),
	})
	settings.InjectAPIKeys(factories.APIKeys{
		Deepgram:   getEnv("DEEPGRAM_API_KEY", ""),
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		ElevenLabs: getEnv("ELEVENLABS_API_KEY", ""),
	})
	return settings
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
