package executor

// Status 是一次部署的生命周期状态。
type Status int

const (
	StatusInit Status = iota
	StatusComposeUpSuccess
	StatusComposeUpFail
	StatusServiceConfigSuccess
	StatusServiceDownSuccess
	StatusServiceDownFail
)

var statusNames = [...]string{
	StatusInit:                 "Init",
	StatusComposeUpSuccess:     "DockerCompose_Up_Success",
	StatusComposeUpFail:        "DockerCompose_Up_Fail",
	StatusServiceConfigSuccess: "Service_Config_Success",
	StatusServiceDownSuccess:   "Service_Down_Success",
	StatusServiceDownFail:      "Service_Down_Fail",
}

var statusMessages = [...]string{
	StatusInit:                 "online flow execute init success",
	StatusComposeUpSuccess:     "online flow execute dockerCompose up success",
	StatusComposeUpFail:        "online flow execute dockerCompose up fail",
	StatusServiceConfigSuccess: "online flow execute set service config success",
	StatusServiceDownSuccess:   "online flow execute dockerCompose down success",
	StatusServiceDownFail:      "online flow execute dockerCompose down fail",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// Message 返回面向用户的状态描述。
func (s Status) Message() string {
	if s < 0 || int(s) >= len(statusMessages) {
		return "online flow status unknown"
	}
	return statusMessages[s]
}

// Up 表示容器已启动（无论配置是否已发布）。
func (s Status) Up() bool {
	return s == StatusComposeUpSuccess || s == StatusServiceConfigSuccess
}
