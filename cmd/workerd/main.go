package main

import "workerd/internal/cli"

func main() { cli.Execute() }
