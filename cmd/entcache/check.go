package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/catalog"
	"github.com/unkn0wn-root/entcache/config"
)

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a config file and print the effective per-entity settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s\n", cfg.Provider.Kind)
			fmt.Fprintf(out, "log: %s (%s)\n", cfg.Log.Backend, cfg.Log.Level)

			settings := cfg.EntitySettings()
			names := append([]string(nil), catalog.Namespaces...)
			sort.Strings(names)
			for _, ns := range names {
				s := settings[ns]
				fmt.Fprintf(out, "%-20s entity[%s] list[%s] codec=%s cache_absent=%t\n",
					ns,
					orDefault(s.EntityPolicy, entcache.DefaultEntityPolicy),
					orDefault(s.ListPolicy, entcache.DefaultListPolicy),
					orName(s.Codec, "default"),
					s.CacheAbsent)
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func orDefault(p, def entcache.Policy) entcache.Policy {
	if p.IsZero() {
		return def
	}
	return p
}

func orName(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
