package main

import "github.com/Davincible/ai-gateway-go/cmd"

func main() {
	cmd.Execute()
}
