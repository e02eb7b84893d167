package manager

// StartDefaults starts every run_on_startup model in the background, one
// after the other, waiting up to the startup timeout for each. Failures are
// logged and do not stop the remaining models.
func (m *Manager) StartDefaults() {
	var names []string
	for _, d := range m.descriptors {
		if d.RunOnStartup {
			names = append(names, d.Name)
		}
	}
	if len(names) == 0 {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		for _, name := range names {
			if m.ctx.Err() != nil {
				return
			}
			w := m.workers[name]
			m.log.Info().Str("model", name).Msg("starting on startup")
			if err := m.ensureReady(m.ctx, w, m.startupReadyTimeout); err != nil {
				m.log.Error().Err(err).Str("model", name).Msg("startup model not ready")
				continue
			}
			m.log.Info().Str("model", name).Msg("startup model ready")
		}
	}()
}
