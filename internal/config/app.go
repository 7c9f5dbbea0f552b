package config

type AppConfig struct {
	Server ServerConfig
	Saga   SagaConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	sagaCfg, err := LoadSaga()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Saga:   sagaCfg,
		Log:    logCfg,
	}, nil
}
