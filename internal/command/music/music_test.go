package music

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/grammar"
	"github.com/keshon/driveby/internal/music/session"
	"github.com/keshon/driveby/pkg/cmd"
)

type call struct {
	op   string
	req  session.Request
	arg  string
	args []string
	idx  []int
}

type fakePlayer struct {
	calls []call
	err   error
}

func (f *fakePlayer) record(c call) error {
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakePlayer) Help() string                { f.record(call{op: "help"}); return "HELP" }
func (f *fakePlayer) List() (string, error)       { return "LIST", f.record(call{op: "list"}) }
func (f *fakePlayer) Pause() error                { return f.record(call{op: "pause"}) }
func (f *fakePlayer) Resume() error               { return f.record(call{op: "resume"}) }
func (f *fakePlayer) Skip() error                 { return f.record(call{op: "skip"}) }
func (f *fakePlayer) Stop() error                 { return f.record(call{op: "stop"}) }
func (f *fakePlayer) Clear() error                { return f.record(call{op: "clear"}) }
func (f *fakePlayer) Leave() error                { return f.record(call{op: "leave"}) }
func (f *fakePlayer) Goto(idx int) error          { return f.record(call{op: "goto", idx: []int{idx}}) }
func (f *fakePlayer) Remove(idx ...int) error     { return f.record(call{op: "rm", idx: idx}) }
func (f *fakePlayer) Play(_ context.Context, r session.Request, u string) error {
	return f.record(call{op: "play", req: r, arg: u})
}
func (f *fakePlayer) PlaySearch(_ context.Context, r session.Request, q string) error {
	return f.record(call{op: "play search", req: r, arg: q})
}
func (f *fakePlayer) Driveby(_ context.Context, r session.Request, u string) error {
	return f.record(call{op: "driveby", req: r, arg: u})
}
func (f *fakePlayer) DrivebySearch(_ context.Context, r session.Request, q string) error {
	return f.record(call{op: "driveby search", req: r, arg: q})
}
func (f *fakePlayer) Enqueue(_ context.Context, r session.Request, us []string) error {
	return f.record(call{op: "queue", req: r, args: us})
}
func (f *fakePlayer) Next(_ context.Context, r session.Request, us []string) error {
	return f.record(call{op: "next", req: r, args: us})
}

func registry(t *testing.T, p Player) *cmd.Registry {
	t.Helper()
	r := cmd.NewRegistry()
	if err := r.Register(Commands(p)...); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestEveryGrammarRowHasACommand(t *testing.T) {
	r := registry(t, &fakePlayer{})
	for _, p := range grammar.Commands {
		name := grammar.Command{Kinds: keywords(p)}.Name()
		if r.Get(name) == nil {
			t.Errorf("no command registered for %q", name)
		}
	}
}

func keywords(p grammar.Pattern) []grammar.Kind {
	var out []grammar.Kind
	for _, k := range p {
		if k != grammar.Argument && k != grammar.Arguments {
			out = append(out, k)
		}
	}
	return out
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		line string
		want call
	}{
		{line: "play https://a", want: call{op: "play", arg: "https://a"}},
		{line: "play search never gonna", want: call{op: "play search", arg: "never gonna"}},
		{line: "driveby https://a", want: call{op: "driveby", arg: "https://a"}},
		{line: "driveby search loud song", want: call{op: "driveby search", arg: "loud song"}},
		{line: "queue a b", want: call{op: "queue", args: []string{"a", "b"}}},
		{line: "next a", want: call{op: "next", args: []string{"a"}}},
		{line: "goto 3", want: call{op: "goto", idx: []int{3}}},
		{line: "rm 2 5", want: call{op: "rm", idx: []int{2, 5}}},
		{line: "skip", want: call{op: "skip"}},
		{line: "leave", want: call{op: "leave"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p := &fakePlayer{}
			r := registry(t, p)
			parsed, err := grammar.Parse(tt.line)
			if err != nil {
				t.Fatal(err)
			}
			inv := &cmd.Invocation{Args: parsed.Args, GuildID: "g", ChannelID: "c", UserID: "u", MessageID: "m"}
			if err := r.Get(parsed.Name()).Run(context.Background(), inv); err != nil {
				t.Fatal(err)
			}

			if len(p.calls) != 1 {
				t.Fatalf("calls = %+v", p.calls)
			}
			got := p.calls[0]
			want := tt.want
			if want.op == "play" || want.op == "play search" || want.op == "driveby" ||
				want.op == "driveby search" || want.op == "queue" || want.op == "next" {
				want.req = session.Request{GuildID: "g", ChannelID: "c", UserID: "u", MessageID: "m"}
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("call = %+v, want %+v", got, want)
			}
		})
	}
}

func TestHelpAndListReply(t *testing.T) {
	p := &fakePlayer{}
	r := registry(t, p)

	for name, want := range map[string]string{"help": "HELP", "list": "LIST"} {
		var got string
		inv := &cmd.Invocation{Reply: func(s string) error { got = s; return nil }}
		if err := r.Get(name).Run(context.Background(), inv); err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s replied %q, want %q", name, got, want)
		}
	}
}

func TestListErrorSkipsReply(t *testing.T) {
	boom := errors.New("empty")
	p := &fakePlayer{err: boom}
	replied := false
	inv := &cmd.Invocation{Reply: func(string) error { replied = true; return nil }}
	if err := registry(t, p).Get("list").Run(context.Background(), inv); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if replied {
		t.Fatal("should not reply on error")
	}
}

func TestBadIndex(t *testing.T) {
	p := &fakePlayer{}
	r := registry(t, p)
	for _, tt := range []struct {
		name string
		args []string
	}{
		{"goto", []string{"two"}},
		{"rm", []string{"1", "x"}},
	} {
		err := r.Get(tt.name).Run(context.Background(), &cmd.Invocation{Args: tt.args})
		if apperr.KindOf(err) != apperr.KindParse {
			t.Errorf("%s %v: err = %v, want parse error", tt.name, tt.args, err)
		}
	}
	if len(p.calls) != 0 {
		t.Fatalf("player called on bad input: %+v", p.calls)
	}
}
