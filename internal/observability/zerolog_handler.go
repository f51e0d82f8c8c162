package observability

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zerologHandler lets slog call sites write through a zerolog console writer.
type zerologHandler struct {
	zl    zerolog.Logger
	level slog.Level
	// attrs are stored already qualified by the group open when they were added.
	attrs []slog.Attr
	group string
}

func (h *zerologHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	var ev *zerolog.Event
	switch {
	case r.Level < slog.LevelInfo:
		ev = h.zl.Debug()
	case r.Level < slog.LevelWarn:
		ev = h.zl.Info()
	case r.Level < slog.LevelError:
		ev = h.zl.Warn()
	default:
		ev = h.zl.Error()
	}

	for _, a := range h.attrs {
		ev = addAttr(ev, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = addAttr(ev, qualify(h.group, a.Key), a.Value)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: qualify(h.group, a.Key), Value: a.Value})
	}
	return &cp
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.group = qualify(h.group, name)
	return &cp
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func addAttr(ev *zerolog.Event, key string, v slog.Value) *zerolog.Event {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			ev = addAttr(ev, qualify(key, ga.Key), ga.Value)
		}
		return ev
	case slog.KindString:
		return ev.Str(key, v.String())
	case slog.KindInt64:
		return ev.Int64(key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, v.Float64())
	case slog.KindBool:
		return ev.Bool(key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(key, v.Duration())
	case slog.KindTime:
		return ev.Time(key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			return ev.AnErr(key, err)
		}
		return ev.Interface(key, v.Any())
	}
}
