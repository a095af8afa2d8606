package main

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"oskern/addrspace/memas"
	"oskern/config"
	db "oskern/debug"
	"oskern/kernel"
	kt "oskern/ktypes"
	"oskern/loader"
	"oskern/machine"
	"oskern/memfs"
	"oskern/uxfs"
	"oskern/vfs"
)

type options struct {
	config string
	set    []string
	root   string
	debug  string
}

func parseArgs() (*options, error) {
	opts := &options{}
	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	flags.StringVar(&opts.config, "config", "", "YAML config file (default $"+config.KERNCONFIG+")")
	flags.StringArrayVar(&opts.set, "set", nil, "Override a config key, as key=value")
	flags.StringVar(&opts.root, "root", "", "Host directory to use as the file system (default in-memory)")
	flags.StringVar(&opts.debug, "debug", "", "Debug selectors, e.g. \"FORK;FDTABLE\"")
	err := flags.Parse(os.Args[1:])
	return opts, err
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return nil, err
	}
	if err := config.Override(cfg, opts.set); err != nil {
		return nil, err
	}
	if opts.debug != "" {
		cfg.Debug = opts.debug
	}
	return cfg, cfg.Validate()
}

type installer func(pn string, b []byte) error

func newFS(root string) (vfs.Provider, installer, error) {
	if root == "" {
		fs := memfs.NewFsMem()
		return fs, func(pn string, b []byte) error {
			fs.Create(pn, b)
			return nil
		}, nil
	}
	fs, err := uxfs.NewFsUx(root)
	if err != nil {
		return nil, nil, err
	}
	return fs, func(pn string, b []byte) error {
		hpn := filepath.Join(root, pn)
		if err := os.MkdirAll(filepath.Dir(hpn), 0755); err != nil {
			return err
		}
		return os.WriteFile(hpn, b, 0755)
	}, nil
}

func main() {
	opts, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		db.DFatalf("config: %v", err)
	}
	fs, install, err := newFS(opts.root)
	if err != nil {
		db.DFatalf("fs %v: %v", opts.root, err)
	}

	cp := memas.NewCopier()
	mach := machine.NewGoMachine()
	d := newDemo(cp, mach)
	for _, p := range d.programs() {
		if err := install(p.pn, loader.BuildELF(elf.EM_MIPS, p.entry, textBase, make([]byte, 64))); err != nil {
			db.DFatalf("install %v: %v", p.pn, err)
		}
	}

	k := kernel.Boot(cfg, kernel.Collaborators{
		AS:      memas.NewProvider(cfg.UserMemSize, cfg.StackSize),
		Copier:  cp,
		FS:      fs,
		Loader:  loader.NewELF(cp, elf.EM_MIPS),
		Machine: mach,
		Console: vfs.NewConsole(os.Stdin, os.Stdout),
	})
	d.k = k

	for _, p := range d.programs() {
		pid, err := k.Runprogram(p.pn, nil)
		if err != nil {
			db.DFatalf("run %v: %v", p.pn, err)
		}
		_, status, err := k.Wait(k.KThread(), pid, 0)
		if err != nil {
			db.DFatalf("wait %v: %v", pid, err)
		}
		fmt.Printf("%v (pid %v) exited %d\n", p.pn, pid, kt.WaitExitStatus(status))
	}
	k.Shutdown()
	fmt.Printf("%v\n", k.Stats())
}
