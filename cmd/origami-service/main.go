package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/service"
	"k8s.io/klog/v2"
)

func main() {
	fmt.Printf("%s (v%s)\n", config.Msg, config.Version)

	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.InfoS(config.Msg, "version", config.Version)
	klog.InfoS("Starting service")

	service := service.NewService()
	err := http.ListenAndServe(":"+config.Port, service.Router)
	klog.ErrorS(err, "Service shut down")
}
