package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"sheetdrip/internal/domain"
)

// Shell delivers a batch by running a local command with the payload JSON on
// stdin and the endpoint in SHEETDRIP_WEBHOOK_URL. A non-zero exit is a
// failed delivery.
type Shell struct {
	Command string
	Args    []string
}

func (h Shell) Submit(ctx context.Context, endpoint string, p domain.Payload) error {
	if h.Command == "" {
		return fmt.Errorf("command is required")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, h.Command, h.Args...)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Env = append(os.Environ(), "SHEETDRIP_WEBHOOK_URL="+endpoint)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("shell error: %v; out=%s", err, string(out))
	}
	return nil
}
