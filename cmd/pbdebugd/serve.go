package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/purebasic-tools/pbdebug/adapter"
	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
	"github.com/purebasic-tools/pbdebug/pberr"
)

// request is one newline-delimited JSON object read from stdin.
type request struct {
	Type      string `json:"type"`
	RequestID uint64 `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`

	ExePath     string   `json:"exe_path,omitempty"`
	WorkDir     string   `json:"work_dir,omitempty"`
	ExtraEnv    []string `json:"extra_env,omitempty"`
	Unicode     bool     `json:"unicode,omitempty"`
	StopOnEntry bool     `json:"stop_on_entry,omitempty"`
	StopOnEnd   bool     `json:"stop_on_end,omitempty"`
	BigEndian   bool     `json:"big_endian,omitempty"`

	FileIndex uint32 `json:"file_index,omitempty"`
	Line      uint32 `json:"line,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
}

// message is one newline-delimited JSON object written to stdout: a
// response to a request, or an uncorrelated event.
type message struct {
	Type      string `json:"type"`
	EventKind string `json:"event_kind,omitempty"`
	RequestID uint64 `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Reason    string `json:"reason,omitempty"`
	FileIndex uint32 `json:"file_index,omitempty"`
	Line      uint32 `json:"line,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Text      string `json:"text,omitempty"`
	Code      uint32 `json:"code,omitempty"`
}

func serveCmd(loadDeps func() (config.Config, logging.Logger, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host the adapter on stdin/stdout as newline-delimited JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadDeps()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, log logging.Logger, in io.Reader, out io.Writer) error {
	a := adapter.New(cfg, log)

	var writeMu sync.Mutex
	enc := json.NewEncoder(out)
	write := func(m message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = enc.Encode(m)
	}

	go func() {
		for ev := range a.Events() {
			write(message{
				Type:      "event",
				SessionID: ev.SessionID,
				Reason:    ev.Reason,
				FileIndex: ev.FileIndex,
				Line:      ev.Line,
				Channel:   ev.Channel,
				Text:      ev.Text,
				Code:      ev.Code,
				Error:     ev.Message,
			}.withEventKind(ev.Kind))
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			write(message{Type: "response", Error: "malformed request: " + err.Error(), ErrorKind: "configuration"})
			continue
		}
		go handleRequest(ctx, a, write, req)
	}
	return scanner.Err()
}

func handleRequest(ctx context.Context, a *adapter.Adapter, write func(message), req request) {
	resp := message{Type: "response", RequestID: req.RequestID, SessionID: req.SessionID}
	defer func() { write(resp) }()

	var err error
	switch req.Type {
	case "launch":
		var sessionID string
		sessionID, err = a.Launch(ctx, adapter.LaunchRequest{
			ExePath:     req.ExePath,
			WorkDir:     req.WorkDir,
			ExtraEnv:    req.ExtraEnv,
			Unicode:     req.Unicode,
			StopOnEntry: req.StopOnEntry,
			StopOnEnd:   req.StopOnEnd,
			BigEndian:   req.BigEndian,
		})
		resp.SessionID = sessionID
	case "set_breakpoint":
		err = a.SetBreakpoint(ctx, req.SessionID, req.FileIndex, req.Line, req.Enabled)
	case "run":
		err = a.Run(ctx, req.SessionID)
	case "step_into":
		err = a.StepInto(ctx, req.SessionID)
	case "step_over":
		err = a.StepOver(ctx, req.SessionID)
	case "step_out":
		err = a.StepOut(ctx, req.SessionID)
	case "terminate":
		err = a.Terminate(ctx, req.SessionID)
	default:
		err = pberr.New("serve", pberr.KindConfiguration, fmt.Sprintf("unknown request type %q", req.Type))
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = string(kindOf(err))
	}
}

func kindOf(err error) pberr.Kind {
	if pe, ok := err.(*pberr.Error); ok {
		return pe.Kind
	}
	return ""
}

func (m message) withEventKind(kind string) message {
	m.Type = "event"
	m.EventKind = kind
	return m
}
