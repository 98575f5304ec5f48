package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/chiplink/pkg/env"
	"github.com/robotalks/chiplink/pkg/flash"
	"github.com/robotalks/chiplink/pkg/framework"
	"github.com/robotalks/chiplink/pkg/protocol"
	"github.com/robotalks/chiplink/pkg/upstream"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	// Link is the opened link, nil if closed.
	Link *env.Link
	// Node is the local controller, its flash is simulated.
	Node *env.Node

	upstream *env.Upstream
	runner   *framework.Runner
	watch    int32
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Node:   env.NewSimNode(flash.DefaultGeometry),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened link.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Link == nil {
			c.Err(fmt.Errorf("link not opened"))
			return
		}
		fn(c)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Dispatcher returns the dispatcher of the opened link.
func (s *Shell) Dispatcher() *protocol.Dispatcher {
	return s.Link.Dispatcher
}

// Context returns a context bounded by the configured timeout.
func (s *Shell) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Config.Timeout+s.Config.Timeout/2)
}

// Open opens the link and the upstream and starts serving them.
func (s *Shell) Open() error {
	s.Close()
	l, err := s.Config.OpenLink()
	if err != nil {
		return err
	}
	up, err := s.Config.OpenUpstream()
	if err != nil {
		l.Close()
		return err
	}
	s.Link, s.upstream = l, up
	s.runner = framework.NewRunner()
	s.runner.Go(l.Runnables()...)
	s.runner.Go(l.Relay(up, s.Config.ID(), protocol.HandleCommandFunc(s.handleCommand))...)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Config.Port))
	return nil
}

// Close stops serving and closes the link.
func (s *Shell) Close() {
	if s.Link == nil {
		return
	}
	s.runner.Stop()
	if up := s.upstream; up != nil {
		up.Close()
	}
	s.Link.Close()
	if err := s.runner.Wait(); err != nil {
		glog.Warningf("link stopped: %v", err)
	}
	s.Link, s.upstream, s.runner = nil, nil, nil
	s.Shell.SetPrompt(closedPrompt)
}

// SetWatch enables printing of unsolicited commands.
func (s *Shell) SetWatch(en bool) {
	var val int32
	if en {
		val = 1
	}
	atomic.StoreInt32(&s.watch, val)
}

func (s *Shell) handleCommand(_ context.Context, cmd protocol.Command) {
	if atomic.LoadInt32(&s.watch) == 0 {
		return
	}
	if s.OutputJSON {
		out, err := (&jsonpb.Marshaler{}).MarshalToString(upstream.EventStruct("", cmd))
		if err == nil {
			s.Shell.Println(out)
		}
		return
	}
	s.Shell.Printf("<< %s %+v\n", cmd.Opcode(), cmd)
}

// Print prints a result as JSON or as text.
func (s *Shell) Print(c *ishell.Context, text string, result interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(result)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Port, err)
		}
		defer s.Close()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens the link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Port = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the link.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// WatchCmd toggles printing of notifications from the chip.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "on|off",
		Func: func(c *ishell.Context) {
			en := len(c.Args) == 0 || c.Args[0] == "on"
			ShellFrom(c).SetWatch(en)
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	defer glog.Flush()
	New(env.NewConfig()).WithAutoOpen(true).Run(flag.Args()...)
}
