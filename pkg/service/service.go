package service

import (
	"github.com/gorilla/mux"
	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/common/mongo"
	"github.com/origamihpc/origami/pkg/common/rabbitmq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"gopkg.in/mgo.v2"
)

// Service is the submission REST API. It records folding jobs in mongodb
// and notifies the dispatcher through the job message queue; it never
// talks to a backend itself.
type Service struct {
	Router  *mux.Router
	session *mgo.Session
	mqConn  *amqp.Connection
	Metrics ServiceMetrics
}

func NewService() *Service {
	s := &Service{
		Router:  mux.NewRouter(),
		session: mongo.ConnectMongo(),
		mqConn:  rabbitmq.ConnectRabbitMQ(),
	}
	s.initRoutes()
	s.initServiceMetrics()
	return s
}

func (s *Service) initRoutes() {
	s.Router.HandleFunc("/", homePage)
	s.Router.HandleFunc(config.EntryPoint, s.createFoldingJobHandler()).Methods("POST")
	s.Router.HandleFunc(config.EntryPoint, s.deleteFoldingJobHandler()).Methods("DELETE")
	s.Router.HandleFunc(config.EntryPoint, s.listFoldingJobsHandler()).Methods("GET")
	s.Router.HandleFunc(config.EntryPoint+"/{name}", s.getFoldingJobHandler()).Methods("GET")
	s.Router.HandleFunc("/health", healthHandler)
	s.Router.Handle("/metrics", promhttp.Handler())
}
