/*
Package resilience provides circuit breakers for outbound fetches.

Page and image fetches go to arbitrary third-party hosts. A Group keeps one
Breaker per host so a dead CDN fails fast without slowing scans of other
hosts.

# Usage

	group := resilience.NewGroup(resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})

	body, err := resilience.Do(group.Get(host), func() ([]byte, error) {
		return fetch(ctx, url)
	})

# States

	Closed --[FailureThreshold consecutive failures]-> Open
	Open --[Cooldown elapsed]-> Half-Open
	Half-Open --[Probes successes]-> Closed
	Half-Open --[any failure]-> Open
*/
package resilience
