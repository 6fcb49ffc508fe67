// Command ir0 drives the kernel core from a host process: it formats and
// inspects MINIX-style disk images through the VFS façade, and can bring
// up the simulated network stack end to end over a loopback device. It
// mirrors distri's own CLI shape: a flat verb table dispatched from
// os.Args, one file per verb family.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/IRodriguez13/IR0-sub003"
	"github.com/IRodriguez13/IR0-sub003/internal/kconfig"
)

var (
	debug  = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	target = flag.String("target", "generic", "feature-set profile to validate before running: generic, desktop, server, iot, embedded")
)

func funcmain() error {
	flag.Parse()

	t, err := kconfig.ParseTarget(*target)
	if err != nil {
		return err
	}
	if err := kconfig.Default(t).Validate(); err != nil {
		return fmt.Errorf("-target %s: %w", *target, err)
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"format": {cmdFormat},
		"mkdir":  {cmdMkdir},
		"touch":  {cmdTouch},
		"write":  {cmdWrite},
		"cat":    {cmdCat},
		"ls":     {cmdLs},
		"stat":   {cmdStat},
		"rm":     {cmdRm},
		"rmdir":  {cmdRmdir},
		"netsim": {cmdNetsim},
		"boot":   {cmdBoot},
	}

	args := flag.Args()
	verb := "help"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "ir0 [-flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Filesystem commands:\n")
		fmt.Fprintf(os.Stderr, "\tformat <image> - create a fresh MINIX-style disk image\n")
		fmt.Fprintf(os.Stderr, "\tmkdir <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\ttouch <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\twrite <image> <path> <contents>\n")
		fmt.Fprintf(os.Stderr, "\tcat <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\tls <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\tstat <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\trm <image> <path>\n")
		fmt.Fprintf(os.Stderr, "\trmdir <image> <path>\n\n")
		fmt.Fprintf(os.Stderr, "Network commands:\n")
		fmt.Fprintf(os.Stderr, "\tnetsim - bring up ipv4/icmp/udp/dns over a loopback device and exchange one ICMP echo and one DNS query/response\n\n")
		fmt.Fprintf(os.Stderr, "Process/syscall commands:\n")
		fmt.Fprintf(os.Stderr, "\tboot <image> <initrd.cpio> <init-path> - unpack initrd into <image>, load <init-path> from it, and run a syscall smoke test\n")
		os.Exit(2)
	}

	ctx, canc := ir0.InterruptibleContext()
	defer canc()
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: ir0 <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return ir0.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
