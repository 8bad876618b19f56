package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/scheduler"
	"k8s.io/klog/v2"
)

func main() {
	fmt.Printf("%s (v%s)\n", config.Msg, config.Version)

	// flag definition should placed before klog.InitFlags()
	/* flags */
	idPtr := flag.String("id", "default", "scheduler ID, distinguishes dispatchers sharing a mongodb")
	algorithmPtr := flag.String("algorithm", "FIFO", "scheduling algorithm (FIFO or SJF)")
	backendPtr := flag.String("backend", "pbs", "batch backend to submit jobs to (pbs or local)")
	resumePtr := flag.Bool("resume", false, "reconstruct scheduler states from mongodb on start")
	/* flags end */

	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.InfoS(config.Msg, "version", config.Version)
	klog.InfoS("Starting dispatcher", "id", *idPtr, "algorithm", *algorithmPtr,
		"backend", *backendPtr, "resume", *resumePtr)

	sched, err := scheduler.NewScheduler(*idPtr, *algorithmPtr, *backendPtr, *resumePtr)
	if err != nil {
		klog.ErrorS(err, "Failed to create scheduler")
		klog.Flush()
		os.Exit(1)
	}
	go sched.Run()

	err = http.ListenAndServe(":"+config.SchedulerPort, sched.Router)
	klog.ErrorS(err, "Dispatcher shut down")
}
