package stats

// fixtureRoster is the small fixed developer dataset used when both the
// upstream and the cache have nothing to offer. It keeps the simulator and
// the dashboard exercisable offline. Results built from it are tagged
// SourceFixture so they are never mistaken for live data.
var fixtureRoster = []Player{
	{ID: "fixture-1", Name: "Jordan Reeves", Team: "BOS", Position: "G"},
	{ID: "fixture-2", Name: "Marcus Bell", Team: "BOS", Position: "F"},
	{ID: "fixture-3", Name: "Devin Okafor", Team: "BOS", Position: "C"},
	{ID: "fixture-4", Name: "Trey Lambert", Team: "LAL", Position: "G"},
	{ID: "fixture-5", Name: "Cole Whitfield", Team: "LAL", Position: "F"},
	{ID: "fixture-6", Name: "Andre Sutton", Team: "LAL", Position: "C"},
	{ID: "fixture-7", Name: "Isaiah Brooks", Team: "GSW", Position: "G"},
	{ID: "fixture-8", Name: "Malik Turner", Team: "MIA", Position: "F"},
}

// FixtureRoster returns a copy of the developer dataset.
func FixtureRoster() []Player {
	players := make([]Player, len(fixtureRoster))
	copy(players, fixtureRoster)
	return players
}
