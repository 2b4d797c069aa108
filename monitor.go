package hdx

import (
	"fmt"
	"io"
	"time"
)

type LogLevel int8

const (
	LogError LogLevel = 4
	LogWarn  LogLevel = 3
	LogInfo  LogLevel = 2
	LogDebug LogLevel = 1
)

func (lvl LogLevel) String() string {
	switch lvl {
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "invalid"
	}
}

// Monitor is how encoders, decoders, and filter flows emit log events.
// It is passed in explicitly at construction; there is no process-global
// logging state anywhere in this project.  The zero Monitor drops everything.
type Monitor struct {
	Chan chan<- Event
}

type Event struct {
	Log    *Event_Log    `json:"log,omitempty"`
	Result *Event_Result `json:"result,omitempty"`
}

type Event_Log struct {
	Time   time.Time   `json:"t"`
	Level  LogLevel    `json:"lvl"`
	Msg    string      `json:"msg"`
	Detail [][2]string `json:"detail,omitempty"`
}

// The final event of a CLI operation: the tree digest plus any error.
type Event_Result struct {
	Digest DigestHex `json:"digest,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func (mon Monitor) Send(evt Event) {
	if mon.Chan == nil {
		return
	}
	mon.Chan <- evt
}

func (mon Monitor) Close() {
	if mon.Chan != nil {
		close(mon.Chan)
	}
}

// Helpers covering the common lifecycle events; using them keeps the
// common stuff formatted in a common way across the packages.

func (mon Monitor) Logf(lvl LogLevel, format string, args ...interface{}) {
	if mon.Chan == nil {
		return
	}
	mon.Send(Event{Log: &Event_Log{
		Time:  time.Now(),
		Level: lvl,
		Msg:   fmt.Sprintf(format, args...),
	}})
}

func (mon Monitor) LogDetailed(lvl LogLevel, msg string, detail [][2]string) {
	if mon.Chan == nil {
		return
	}
	mon.Send(Event{Log: &Event_Log{
		Time:   time.Now(),
		Level:  lvl,
		Msg:    msg,
		Detail: detail,
	}})
}

// NewPrinterMonitor returns a monitor plus the drain goroutine's done chan.
// Events at or above the threshold level are printed to w; the caller must
// close the monitor and then wait on done before exiting.
func NewPrinterMonitor(w io.Writer, threshold LogLevel) (Monitor, <-chan struct{}) {
	ch := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			if evt.Log == nil || evt.Log.Level < threshold {
				continue
			}
			fmt.Fprintf(w, "%s: %s", evt.Log.Level, evt.Log.Msg)
			for _, kv := range evt.Log.Detail {
				fmt.Fprintf(w, " %s=%q", kv[0], kv[1])
			}
			fmt.Fprintln(w)
		}
	}()
	return Monitor{Chan: ch}, done
}
