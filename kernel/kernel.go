// Package kernel implements process duplication, termination and
// reaping on top of the process manager and descriptor tables, and
// the system-call surface user programs trap into.
package kernel

import (
	"oskern/addrspace"
	"oskern/config"
	db "oskern/debug"
	"oskern/fdtable"
	"oskern/kstats"
	"oskern/loader"
	"oskern/machine"
	"oskern/proc"
	"oskern/threadmgr"
	"oskern/usermem"
	"oskern/vfs"
)

const CONSOLE = "con:"

// Collaborators are the subsystems the kernel drives but does not
// implement.
type Collaborators struct {
	AS      addrspace.Provider
	Copier  usermem.Copier
	FS      vfs.Provider
	Loader  loader.Loader
	Machine machine.Machine
	Console *vfs.Console // nil means a console that reads EOF and discards output
}

// Kernel is the process-wide state. Everything that would be a global
// in a kernel hangs off it, so tests can boot as many as they like.
type Kernel struct {
	cfg     *config.Config
	as      addrspace.Provider
	copier  usermem.Copier
	vfs     *vfs.Mux
	loader  loader.Loader
	mach    machine.Machine
	fdp     *fdtable.Params
	procs   *proc.Manager
	tm      *threadmgr.ThreadMgr
	stats   *kstats.Stats
	kthread *proc.Thread
}

// Boot brings up a kernel. An invalid configuration is fatal.
func Boot(cfg *config.Config, c Collaborators) *Kernel {
	if err := cfg.Validate(); err != nil {
		db.DFatalf("Boot: %v", err)
	}
	if cfg.Debug != "" {
		db.SetLabels(cfg.Debug)
	}
	con := c.Console
	if con == nil {
		con = vfs.NewConsole(nil, nil)
	}
	mux := vfs.NewMux(c.FS)
	mux.AddDevice(CONSOLE, con)

	k := &Kernel{
		cfg:    cfg,
		as:     c.AS,
		copier: c.Copier,
		vfs:    mux,
		loader: c.Loader,
		mach:   c.Machine,
	}
	k.fdp = fdtable.NewParams(cfg, c.Copier)
	k.procs = proc.NewManager(cfg, c.AS, k.fdp)
	k.tm = threadmgr.New(k.procs, cfg.MaxThreads)
	k.stats = kstats.New(kstats.Sources{
		LiveHandles:   k.fdp.Stats.Live.Load,
		OpenedHandles: k.fdp.Stats.Opened.Load,
		BytesRead:     k.fdp.Stats.BytesRead.Load,
		BytesWritten:  k.fdp.Stats.BytesWritten.Load,
		PidsAvailable: k.procs.Pids().Available,
		Threads:       k.tm.NThreads,
	})

	kp := k.procs.KProc()
	if root, err := c.FS.Root(); err == nil {
		kp.SetCwd(root)
	} else {
		db.DPrintf(db.KERNEL_ERR, "Boot: no root: %v", err)
	}
	k.kthread = k.tm.Attach("boot", kp)
	db.DPrintf(db.KERNEL, "Boot %v", cfg)
	return k
}

// KThread is the boot thread, which runs in the kernel process.
func (k *Kernel) KThread() *proc.Thread {
	return k.kthread
}

func (k *Kernel) Config() *config.Config {
	return k.cfg
}

func (k *Kernel) Procs() *proc.Manager {
	return k.procs
}

func (k *Kernel) Stats() *kstats.Stats {
	return k.stats
}

func (k *Kernel) FS() vfs.Provider {
	return k.vfs
}

// Shutdown waits for every user thread to finish.
func (k *Kernel) Shutdown() {
	k.tm.Wait()
	db.DPrintf(db.KERNEL, "Shutdown %v", k.stats)
}
