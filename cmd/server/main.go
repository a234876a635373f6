package main

import "hrdash/internal/app/server"

func main() {
	server.Run()
}
