package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/spf13/pflag"

	"dollar/internal/config"
	"dollar/internal/ipc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [--socket path] listen [--file audio] | say <text...> | stop | replay\n", filepath.Base(os.Args[0]))
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", config.DefaultSocketPath, "Control socket path")
	file := cli.StringP("file", "f", "", "Transcribe this audio file instead of the microphone")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var msg ipc.ControlMessage
	switch args[0] {
	case ipc.CmdListen:
		msg.Cmd = ipc.CmdListen
		if *file != "" {
			abs, err := filepath.Abs(*file)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			msg.File = abs
		}
	case "say", ipc.CmdText:
		msg.Cmd = ipc.CmdText
		msg.Text = strings.Join(args[1:], " ")
		if strings.TrimSpace(msg.Text) == "" {
			usage()
			os.Exit(2)
		}
	case ipc.CmdStop, ipc.CmdReplay:
		msg.Cmd = args[0]
	default:
		usage()
		os.Exit(2)
	}

	if err := ipc.Send(*socket, msg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
