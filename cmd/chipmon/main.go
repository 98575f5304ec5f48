package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/chiplink/pkg/framework"
	"github.com/robotalks/chiplink/pkg/upstream"
	"github.com/robotalks/chiplink/pkg/upstream/mqtt"
)

var (
	mqttURL  = "mqtt://localhost:1883/chiplink/"
	deviceID = "+"
	discover time.Duration
)

func init() {
	if val := os.Getenv("CHIPLINK_UPSTREAM"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&deviceID, "id", deviceID, "Device to watch, + for all.")
	flag.DurationVar(&discover, "discover", discover, "List devices seen within the duration and exit.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	mon, err := mqtt.NewMonitor(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if err = mon.Connect(); err != nil {
		glog.Exit(err)
	}
	defer mon.Close()

	runner := framework.NewRunner().HandleSignals()
	if discover > 0 {
		devices, err := mon.Discover(runner.Context, discover)
		if err != nil {
			glog.Exit(err)
		}
		for id, state := range devices {
			fmt.Printf("%s: %s\n", id, state)
		}
		return
	}

	runner.Go(framework.NamedRun("watch", framework.RunFunc(func(ctx context.Context) error {
		return mon.Watch(ctx, deviceID, mqtt.EventTopic, printEvent)
	})))
	if err = runner.Wait(); err != nil {
		glog.Error(err)
	}
}

var marshaler = &jsonpb.Marshaler{}

func printEvent(msg mqtt.Message) {
	event, err := upstream.DecodeEventStruct(msg.Payload)
	if err != nil {
		glog.Warningf("%s: bad event: %v", msg.DeviceID, err)
		return
	}
	out, err := marshaler.MarshalToString(event)
	if err != nil {
		glog.Warningf("%s: %v", msg.DeviceID, err)
		return
	}
	fmt.Printf("%s: %s\n", msg.DeviceID, out)
}
