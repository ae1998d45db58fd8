package workerctl

import (
	"fmt"
	"reflect"
	"testing"
)

func TestEnumerate(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("processes=%d", n), func(t *testing.T) {
			cfg := WorkerConfig{
				ProcessCount:      n,
				BasePIDPath:       "/srv/app/shared/pids/sidekiq.pid",
				DefaultConfigPath: "/srv/app/current/config/sidekiq.yml",
			}

			instances := Enumerate(cfg)
			if len(instances) != n {
				t.Fatalf("got %d instances, want %d", len(instances), n)
			}

			for k, inst := range instances {
				if inst.Index != k {
					t.Errorf("instance %d has index %d", k, inst.Index)
				}
				want := cfg.BasePIDPath
				if k > 0 {
					want = fmt.Sprintf("%s-%d", cfg.BasePIDPath, k)
				}
				if inst.PIDFile != want {
					t.Errorf("instance %d PIDFile = %q, want %q", k, inst.PIDFile, want)
				}
			}
		})
	}
}

func TestEnumerateConfigPaths(t *testing.T) {
	cfg := WorkerConfig{
		ProcessCount:      4,
		BasePIDPath:       "/tmp/sidekiq.pid",
		ConfigPaths:       []string{"/cfg/a.yml", "/cfg/b.yml"},
		DefaultConfigPath: "/cfg/default.yml",
	}

	var got []string
	for _, inst := range Enumerate(cfg) {
		got = append(got, inst.ConfigFile)
	}

	want := []string{"/cfg/a.yml", "/cfg/b.yml", "/cfg/default.yml", "/cfg/default.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("config files = %v, want %v", got, want)
	}
}

func TestEnumerateRepeatable(t *testing.T) {
	cfg := WorkerConfig{ProcessCount: 3, BasePIDPath: "/tmp/w.pid", DefaultConfigPath: "/tmp/w.yml"}

	first := Enumerate(cfg)
	second := Enumerate(cfg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Enumerate not repeatable: %v != %v", first, second)
	}
}

func TestEnumerateInvalidCount(t *testing.T) {
	if got := Enumerate(WorkerConfig{ProcessCount: 0}); len(got) != 0 {
		t.Errorf("got %d instances for zero processes", len(got))
	}
}

func TestEnumerateBlankConfigPath(t *testing.T) {
	cfg := WorkerConfig{
		ProcessCount:      2,
		BasePIDPath:       "/tmp/w.pid",
		ConfigPaths:       []string{"", "/cfg/b.yml"},
		DefaultConfigPath: "/cfg/default.yml",
	}

	instances := Enumerate(cfg)
	if got := instances[0].ConfigFile; got != "/cfg/default.yml" {
		t.Errorf("blank entry: ConfigFile = %q, want the default", got)
	}
	if got := instances[1].ConfigFile; got != "/cfg/b.yml" {
		t.Errorf("ConfigFile = %q, want /cfg/b.yml", got)
	}
}
