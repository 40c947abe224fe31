package models

import "time"

// RunState is the lifecycle state of a supervised decoy
type RunState string

const (
	// 尚未启动
	StateUnstarted RunState = "unstarted"
	// 进程已派生，等待就绪事件
	StateStarting RunState = "starting"
	// 已观察到就绪事件
	StateReady RunState = "ready"
	// 就绪后进入稳定运行
	StateRunning RunState = "running"
	// 正在执行停止流程
	StateStopping RunState = "stopping"
	// 进程退出且端口已释放
	StateStopped RunState = "stopped"
	// 启动超时或运行中异常退出
	StateFailed RunState = "failed"
)

// StartMode selects how `run` hosts the decoy process
type StartMode string

const (
	ModeForeground StartMode = "foreground"
	ModeDaemon     StartMode = "daemon"
)

type ProcessDetail struct {
	Service   string    `json:"service"`   //服务名
	RunID     string    `json:"runId"`     //本次运行的唯一标识
	HostPid   int       `json:"hostPid"`   //托管进程PID
	Pid       int       `json:"pid"`       //诱饵进程PID
	Port      int       `json:"port"`      //监听端口
	Mode      StartMode `json:"mode"`      //启动方式
	State     RunState  `json:"state"`     //状态
	StartTime time.Time `json:"startTime"` //启动时间
}
