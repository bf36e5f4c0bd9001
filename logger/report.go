package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsTransport int64
	errorsDecoder   int64
	warnsTransport  int64
	warnsDecoder    int64
	orderbookFrames int64
	tradeFrames     int64
	controlSent     int64
	reconnects      int64
	decodeFailures  int64
	droppedFrames   int64
	channels        sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "transport") {
		atomic.AddInt64(&warnsTransport, 1)
	} else if strings.Contains(component, "decoder") {
		atomic.AddInt64(&warnsDecoder, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "transport") {
		atomic.AddInt64(&errorsTransport, 1)
	} else if strings.Contains(component, "decoder") {
		atomic.AddInt64(&errorsDecoder, 1)
	}
}

func IncrementOrderbookFrame(size int) {
	atomic.AddInt64(&orderbookFrames, 1)
	recordChannel("orderbook_ws", size)
}

func IncrementTradeFrame(size int) {
	atomic.AddInt64(&tradeFrames, 1)
	recordChannel("trades_ws", size)
}

func IncrementControlSent(size int) {
	atomic.AddInt64(&controlSent, 1)
	recordChannel("control_ws", size)
}

func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func IncrementDecodeFailure() {
	atomic.AddInt64(&decodeFailures, 1)
}

func IncrementFrameDropped() {
	atomic.AddInt64(&droppedFrames, 1)
}

// Reconnects reports the number of reconnect attempts observed so far.
func Reconnects() int64 {
	return atomic.LoadInt64(&reconnects)
}

// Counters returns a snapshot of the data-flow counters for status
// endpoints.
func Counters() map[string]int64 {
	return map[string]int64{
		"orderbook_frames": atomic.LoadInt64(&orderbookFrames),
		"trade_frames":     atomic.LoadInt64(&tradeFrames),
		"control_sent":     atomic.LoadInt64(&controlSent),
		"reconnects":       atomic.LoadInt64(&reconnects),
		"decode_failures":  atomic.LoadInt64(&decodeFailures),
		"dropped_frames":   atomic.LoadInt64(&droppedFrames),
	}
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and channel statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_transport": atomic.LoadInt64(&errorsTransport),
		"errors_decoder":   atomic.LoadInt64(&errorsDecoder),
		"warns_transport":  atomic.LoadInt64(&warnsTransport),
		"warns_decoder":    atomic.LoadInt64(&warnsDecoder),
		"orderbook_frames": atomic.LoadInt64(&orderbookFrames),
		"trade_frames":     atomic.LoadInt64(&tradeFrames),
		"control_sent":     atomic.LoadInt64(&controlSent),
		"reconnects":       atomic.LoadInt64(&reconnects),
		"decode_failures":  atomic.LoadInt64(&decodeFailures),
		"dropped_frames":   atomic.LoadInt64(&droppedFrames),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        int64(memStats.Used) / 1024 / 1024,
		"channels":         channelData,
		"net_bytes_sent":   int64(bytesSent),
		"net_bytes_recv":   int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Flow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ErrorsTransport"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_transport"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ErrorsDecoder"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_decoder"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-OrderbookFrames"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orderbook_frames"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-TradeFrames"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["trade_frames"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reconnects"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-DecodeFailures"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["decode_failures"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Flow-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Flow-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
