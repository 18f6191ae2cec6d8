package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/ai-gateway-go/internal/process"
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command against the gateway",
	Long: `Start the gateway service if needed and run a command with its
environment pointed at the gateway. OPENAI_BASE_URL and ANTHROPIC_BASE_URL
are set to the local endpoint so OpenAI and Anthropic clients route through
the gateway transparently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runThrough,
}

func runThrough(cmd *cobra.Command, args []string) error {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	startedByUs, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)

	env := os.Environ()
	env = filterEnv(env, "ANTHROPIC_AUTH_TOKEN")
	env = filterEnv(env, "ANTHROPIC_API_KEY")
	env = filterEnv(env, "OPENAI_API_KEY")

	key := cfg.APIKey
	if key == "" {
		key = "gateway"
	}
	env = append(env,
		"ANTHROPIC_API_KEY="+key,
		"ANTHROPIC_BASE_URL="+endpoint,
		"OPENAI_API_KEY="+key,
		"OPENAI_BASE_URL="+endpoint+"/v1",
	)

	procMgr.IncrementRef()
	defer func() {
		procMgr.DecrementRef()
		if startedByUs && procMgr.ReadRef() == 0 {
			color.Yellow("No more active sessions, stopping auto-started service...")
			procMgr.Stop()
		}
	}()

	child := exec.Command(args[0], args[1:]...)
	child.Env = env
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	return child.Run()
}

func filterEnv(env []string, key string) []string {
	prefix := key + "="
	filtered := env[:0]
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
