// Command voicesync is the terminal client: it can host a standalone
// signaling server, start a new room, or join an existing one.
package main

import "github.com/TheCodeDaniel/voiceSync/cmd/voicesync/cmd"

func main() {
	cmd.Execute()
}
