package main

import (
	"github.com/chrisvdg/offlineagent/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "agent.yaml", "agent config file path")
	listAddr := pflag.StringP("listenaddr", "l", "", "http listen address override")
	origin := pflag.StringP("origin", "o", "", "upstream origin URL override")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.Parse()

	c, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *listAddr != "" {
		c.ListenAddr = *listAddr
	}
	if *origin != "" {
		c.Origin = *origin
	}
	if *verbose {
		c.Verbose = true
	}
	if c.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	s, err := server.New(c, nil)
	if err != nil {
		log.Fatal(err)
	}

	s.ListenAndServe()
}
