package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/orbiterhq/orbiter-go/pkg/config"
	"github.com/orbiterhq/orbiter-go/pkg/deadletter"
	"github.com/orbiterhq/orbiter-go/pkg/deliver"
	"github.com/orbiterhq/orbiter-go/pkg/mission"
	"github.com/orbiterhq/orbiter-go/pkg/notify"
	"github.com/orbiterhq/orbiter-go/pkg/reschedule"
	"github.com/orbiterhq/orbiter-go/pkg/scheduler"
	"github.com/orbiterhq/orbiter-go/pkg/slo"
	"github.com/orbiterhq/orbiter-go/pkg/store"
	"github.com/orbiterhq/orbiter-go/pkg/telemetry"
	"github.com/orbiterhq/orbiter-go/pkg/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: orbiter <command> [args]")
		fmt.Println("Commands: run, onboard, slo")
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		runScheduler(os.Args[2:])
	case "onboard":
		runOnboard()
	case "slo":
		runSlo(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func buildSenders(cfg *config.Config) []deliver.Sender {
	var senders []deliver.Sender

	if cfg.Channels.Telegram.Enabled {
		s, err := deliver.NewTelegramSender(&cfg.Channels.Telegram)
		if err != nil {
			fmt.Printf("Error starting Telegram sender: %v\n", err)
		} else {
			senders = append(senders, s)
		}
	}
	if cfg.Channels.DingTalk.Enabled {
		s, err := deliver.NewDingTalkSender(&cfg.Channels.DingTalk)
		if err != nil {
			fmt.Printf("Error starting DingTalk sender: %v\n", err)
		} else {
			senders = append(senders, s)
		}
	}
	if cfg.Channels.Feishu.Enabled {
		s, err := deliver.NewFeishuSender(&cfg.Channels.Feishu)
		if err != nil {
			fmt.Printf("Error starting Feishu sender: %v\n", err)
		} else {
			senders = append(senders, s)
		}
	}
	return senders
}

func runScheduler(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("c", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	workspace := expandPath(cfg.Workspace)
	utils.SetupLogger(filepath.Join(workspace, "logs"))

	queue := store.NewWriteQueue()
	missions := mission.NewStore(filepath.Join(workspace, "missions"), queue)
	schedules := notify.NewStore(filepath.Join(workspace, "notify"), queue)
	overrides := reschedule.NewStore(filepath.Join(workspace, "reschedule"), queue)
	deadLetters := deadletter.NewLog(filepath.Join(workspace, "deadletter"))
	sink := telemetry.NewSink(filepath.Join(workspace, "telemetry", "events.jsonl"))

	dispatcher := deliver.NewDispatcher(buildSenders(cfg), time.Duration(cfg.Scheduler.DeliverTimeoutSecs)*time.Second)

	svc := scheduler.NewService(missions, schedules, overrides, deadLetters, dispatcher)
	svc.Telemetry = sink
	if cfg.Scheduler.TickSeconds > 0 {
		svc.TickInterval = time.Duration(cfg.Scheduler.TickSeconds) * time.Second
	}

	svc.Start()
	defer svc.Stop()

	fmt.Println("Scheduler running. Press Ctrl+C to stop.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func runSlo(args []string) {
	fs := flag.NewFlagSet("slo", flag.ExitOnError)
	configPath := fs.String("c", "", "Path to config file")
	lookback := fs.Int("days", 0, "Lookback window in days (default from policy)")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	policy, err := slo.LoadPolicy(cfg.Slo.PolicyPath)
	if err != nil {
		fmt.Printf("Error loading SLO policy: %v\n", err)
		os.Exit(1)
	}

	workspace := expandPath(cfg.Workspace)
	sink := telemetry.NewSink(filepath.Join(workspace, "telemetry", "events.jsonl"))
	events, err := sink.Load(time.Time{})
	if err != nil {
		fmt.Printf("Error loading telemetry: %v\n", err)
		os.Exit(1)
	}

	report := slo.Evaluate(events, policy, *lookback, time.Now().UTC())
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

func runOnboard() {
	configDir := ".orbiter"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		fmt.Printf("Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	configFile := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if abs, err := filepath.Abs(filepath.Join(configDir, "workspace")); err == nil {
			cfg.Workspace = abs
		} else {
			cfg.Workspace = filepath.Join(configDir, "workspace")
		}

		file, err := os.Create(configFile)
		if err != nil {
			fmt.Printf("Warning: Could not create config file: %v\n", err)
		} else {
			defer file.Close()
			encoder := json.NewEncoder(file)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(cfg); err != nil {
				fmt.Printf("Error writing config file: %v\n", err)
			}
			fmt.Printf("Created config file at %s\n", configFile)
		}
	} else {
		fmt.Printf("Config file already exists at %s\n", configFile)
	}

	workspace := filepath.Join(configDir, "workspace")
	for _, dir := range []string{"missions", "notify", "reschedule", "deadletter", "telemetry", "logs"} {
		if err := os.MkdirAll(filepath.Join(workspace, dir), 0755); err != nil {
			fmt.Printf("Error creating workspace dir %s: %v\n", dir, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Created workspace at %s\n", workspace)
	fmt.Println("Onboarding complete! Edit .orbiter/config.json to enable delivery channels.")
}
