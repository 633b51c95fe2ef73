package user

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	// Timezone is the user's preferred IANA zone, used as the default
	// stepping zone for new series.
	Timezone string
}
