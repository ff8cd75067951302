package domain

// Selection is one revealed (user name, card) pair, in server order.
type Selection struct {
	UserName string
	Card     int
}

// ResultSet is the terminal vote data published when cards are revealed.
// It exists only during the Revealed phase; a reset or leave clears it.
type ResultSet struct {
	Selections   []Selection
	MostSelected *int
	TotalVotes   int
}
