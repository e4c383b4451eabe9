package filter

/*
The Env an inbound message filter is evaluated against. Filters are user configuration, so renaming a property
breaks existing filters.
*/

type Author struct {
	Id    string
	Name  string
	Email string
}

type Env struct {
	RoomId  string
	UserId  string
	Content string
	Author  Author
	Created int64 // unix seconds
}
