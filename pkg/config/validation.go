package config

import "fmt"

// validate checks the loaded configuration for sane values: valid
// port ranges, an XLX primary slot of 1 or 2, and a positive
// inactivity timeout.
func validate(cfg *Config) error {
	if cfg.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity_timeout must be positive")
	}

	if err := validatePort("repeater.port", cfg.Repeater.Port); err != nil {
		return err
	}
	if err := validatePort("local.port", cfg.Local.Port); err != nil {
		return err
	}

	if err := validateDMRNetwork("dmr1", cfg.DMR1); err != nil {
		return err
	}
	if err := validateDMRNetwork("dmr2", cfg.DMR2); err != nil {
		return err
	}
	if err := validateXLXNetwork("xlx1", cfg.XLX1); err != nil {
		return err
	}
	if err := validateXLXNetwork("xlx2", cfg.XLX2); err != nil {
		return err
	}

	if cfg.Voice.Enabled && cfg.Voice.Directory == "" {
		return fmt.Errorf("voice.directory is required when voice is enabled")
	}

	if cfg.Web.Enabled {
		if err := validatePort("web.port", cfg.Web.Port); err != nil {
			return err
		}
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}

	if cfg.Metrics.Prometheus.Enabled {
		if err := validatePort("metrics.prometheus.port", cfg.Metrics.Prometheus.Port); err != nil {
			return err
		}
	}

	return nil
}

func validateBaseNetwork(name string, b BaseNetworkConfig) error {
	if !b.Enabled {
		return nil
	}
	if b.Address == "" {
		return fmt.Errorf("%s.address is required when %s is enabled", name, name)
	}
	if err := validatePort(name+".port", b.Port); err != nil {
		return err
	}
	if b.LocalPort != 0 {
		if err := validatePort(name+".local_port", b.LocalPort); err != nil {
			return err
		}
	}
	return nil
}

func validateDMRNetwork(name string, n DMRNetworkConfig) error {
	return validateBaseNetwork(name, n.BaseNetworkConfig)
}

func validateXLXNetwork(name string, n XLXNetworkConfig) error {
	if err := validateBaseNetwork(name, n.BaseNetworkConfig); err != nil {
		return err
	}
	if !n.Enabled {
		return nil
	}
	if n.PrimarySlot != 1 && n.PrimarySlot != 2 {
		return fmt.Errorf("%s.primary_slot must be 1 or 2", name)
	}
	if n.PrimaryTG == 0 {
		return fmt.Errorf("%s.primary_tg is required when %s is enabled", name, name)
	}
	return nil
}

func validatePort(field string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", field)
	}
	return nil
}
