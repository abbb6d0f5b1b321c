package params

type ListenerConfig struct {
	Network string
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		DataDir:        DatadirRoot,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		DataDir: "",
	}
}
