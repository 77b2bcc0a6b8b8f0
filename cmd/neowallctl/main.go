// Command neowallctl is a small client for the neowall control API.
//
//	neowallctl [-addr host:port] status
//	neowallctl outputs
//	neowallctl next | pause | resume | reload
//	neowallctl history <output>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:7621"

func main() {
	addr := flag.String("addr", envOr("NEOWALL_LISTEN_ADDR", defaultAddr), "daemon listen address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	base := "http://" + *addr

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "status":
		err = get(client, base+"/v1/status")
	case "outputs":
		err = get(client, base+"/v1/outputs")
	case "next":
		err = post(client, base+"/v1/next")
	case "pause":
		err = post(client, base+"/v1/pause")
	case "resume":
		err = post(client, base+"/v1/resume")
	case "reload":
		err = post(client, base+"/v1/reload")
	case "history":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "history requires an output name")
			os.Exit(2)
		}
		err = get(client, base+"/v1/outputs/"+flag.Arg(1)+"/history")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "neowallctl: %v\n", err)
		os.Exit(1)
	}
}

func get(c *http.Client, url string) error {
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func post(c *http.Client, url string) error {
	resp, err := c.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// printResponse re-indents the JSON body for the terminal.
func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, body)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Printf("%s\n", body)
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", out)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: neowallctl [-addr host:port] <command>

commands:
  status            daemon and backend status
  outputs           list outputs and current wallpapers
  next              advance every cycling output
  pause             suspend wallpaper cycling
  resume            resume wallpaper cycling
  reload            re-read the configuration file
  history <output>  wallpaper history for one output
`)
	flag.PrintDefaults()
}
