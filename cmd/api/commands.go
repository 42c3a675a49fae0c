package main

import (
	"context"
	"encoding/json"

	"bibomarket/internal/infrastructure/scheduler"
	"bibomarket/internal/infrastructure/websocket"
	"bibomarket/internal/usecase"
	"bibomarket/pkg/errors"
)

type refreshCommand struct {
	Job string `json:"job"`
}

// registerShellCommands wires the commands a shell may send over /ws.
func registerShellCommands(m *websocket.Manager, conversations *usecase.ConversationUseCase, poller *scheduler.Poller) {
	m.HandleCommand(websocket.CommandOutsideClick, func(ctx context.Context, _ *websocket.Client, data json.RawMessage) (interface{}, error) {
		var target usecase.ClickTarget
		if len(data) > 0 {
			if err := json.Unmarshal(data, &target); err != nil {
				return nil, errors.BadRequest("Invalid click target", err)
			}
		}
		return map[string]bool{"closed": conversations.HandleClick(target)}, nil
	})

	m.HandleCommand(websocket.CommandRefresh, func(ctx context.Context, _ *websocket.Client, data json.RawMessage) (interface{}, error) {
		var cmd refreshCommand
		if len(data) > 0 {
			if err := json.Unmarshal(data, &cmd); err != nil {
				return nil, errors.BadRequest("Invalid refresh command", err)
			}
		}
		if cmd.Job == "" {
			cmd.Job = scheduler.JobSelectedThread
		}
		if err := poller.RunNow(ctx, cmd.Job); err != nil {
			return nil, err
		}
		return map[string]string{"job": cmd.Job}, nil
	})
}
