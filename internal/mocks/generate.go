package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Gateway --dir ../domain/notification --output domain/notification --outpkg notificationmock --filename gateway_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name RoleSync --dir ../domain/notification --output domain/notification --outpkg notificationmock --filename role_sync_mock.go
