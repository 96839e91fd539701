package runner

import (
	"fmt"

	"github.com/agusx1211/hatloop/internal/stream"
)

// CommandSpec is the launch configuration for one agent invocation.
// Stdin carries the prompt when the backend reads it from stdin.
type CommandSpec struct {
	Exe   string
	Args  []string
	Stdin string
	Env   map[string]string
}

// BuildCommand translates a backend selection and a prompt into the
// process to spawn. It is a pure function and the only place where
// backend command-line conventions are known.
//
// All backends receive the prompt through stdin to avoid argv size
// limits on long prompts.
func BuildCommand(backend stream.Backend, prompt string) (CommandSpec, error) {
	switch backend {
	case stream.BackendClaude:
		// --print enables non-interactive mode. --verbose is required by
		// the CLI when requesting stream-json output.
		return CommandSpec{
			Exe: "claude",
			Args: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--dangerously-skip-permissions",
			},
			Stdin: prompt,
		}, nil

	case stream.BackendCodex:
		return CommandSpec{
			Exe: "codex",
			Args: []string{
				"exec",
				"--json",
				"--skip-git-repo-check",
				"--dangerously-bypass-approvals-and-sandbox",
			},
			Stdin: prompt,
			Env:   map[string]string{"RUST_LOG": "error,codex_core::rollout::list=off"},
		}, nil

	case stream.BackendPi:
		return CommandSpec{
			Exe:   "pi",
			Args:  []string{"--mode", "json"},
			Stdin: prompt,
		}, nil

	default:
		return CommandSpec{}, fmt.Errorf("unknown backend %q", backend)
	}
}
