package service

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/mongo"
	"github.com/origamihpc/origami/pkg/common/rabbitmq"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/origamihpc/origami/pkg/fasta"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	databaseNameJobInfo       = "job_info"
	databaseNameJobMetadata   = "job_metadata"
	collectionNameJobMetadata = "v1"
)

func homePage(w http.ResponseWriter, r *http.Request) {
	fmt.Println("Endpoint Hit: homePage")
	fmt.Fprintf(w, config.Msg+" - Submission Service")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *Service) createFoldingJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Println("Endpoint Hit: createFoldingJob")
		start := time.Now()

		reqBody, err := ioutil.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, err.Error())
			return
		}

		name, err := s.CreateFoldingJob(reqBody)
		s.Metrics.createJobDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, err.Error())
		} else {
			s.Metrics.createJobSuccessDuration.Observe(time.Since(start).Seconds())
			s.Metrics.jobsCreatedCounter.Inc()
			fmt.Fprintf(w, "Folding job created: %s\nWatch its status by:\n%s", name, "    origami get jobs")
		}
	}
}

// CreateFoldingJob
//  1. Decode and validate job spec
//  2. Get or create base job info by job collection
//  3. Pre-process job spec
//  4. Create folding job
//     4.1. Insert job info to db
//     4.2. Insert job metadata to db
//  5. Publish msg to mq, which is meant to be subscribed by the scheduler
func (s *Service) CreateFoldingJob(data []byte) (string, error) {
	spec, err := bytesToJobSpec(data)
	if err != nil {
		klog.InfoS("Failed to convert data to job spec", "err", err)
		return "", err
	}

	// Jobs submitted under the same name land in the same collection and
	// share a folding speed estimate.
	jobCollection := spec.Name

	// extend folding job name with timestamp
	now := time.Now()
	jobName := spec.Name + "-" + now.Format("20060102-030405")
	spec.Name = jobName

	t, err := foldingjob.NewFoldingJob(spec, jobCollection, now)
	if err != nil {
		klog.InfoS("Failed to create folding job", "err", err, "job", jobName)
		return "", err
	}

	info, err := s.getOrCreateBaseJobInfo(jobCollection)
	if err != nil {
		klog.InfoS("Failed to create folding job", "err", err, "job", jobName)
		return "", err
	}

	sess := s.session.Clone()
	defer sess.Close()

	info = initJobInfo(info, jobName, countResidues(t))
	cJobInfo := sess.DB(databaseNameJobInfo).C(jobCollection)
	err = cJobInfo.Insert(info)
	if err != nil {
		klog.ErrorS(err, "Failed to insert record to mongo", "database", databaseNameJobInfo,
			"collection", jobCollection, "job", jobName)
		return "", err
	}

	cJobMetadata := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata)
	err = cJobMetadata.Insert(t)
	if err != nil {
		klog.InfoS("Failed to create folding job", "err", err, "job", jobName)
		return "", err
	}

	msg := rabbitmq.Msg{Verb: rabbitmq.VerbCreate, JobName: jobName}
	err = rabbitmq.PublishToQueue(s.mqConn, config.JobMsgQueue, msg)
	if err != nil {
		// Remove the just inserted records if the publishing failed. This
		// is to avoid inconsistency between the DB and the message queue.
		err2 := cJobInfo.Remove(bson.M{"name": jobName})
		if err2 != nil {
			klog.ErrorS(err2, "Failed to remove record", "job", jobName,
				"database", databaseNameJobInfo, "collection", jobCollection)
		}
		err2 = cJobMetadata.Remove(bson.M{"name": jobName})
		if err2 != nil {
			klog.ErrorS(err2, "Failed to remove record", "job", jobName,
				"database", databaseNameJobMetadata, "collection", collectionNameJobMetadata)
		}
		return "", err
	}

	klog.InfoS("Created folding job", "job", jobName)
	return jobName, nil
}

func bytesToJobSpec(data []byte) (foldingjob.JobSpec, error) {
	spec := foldingjob.JobSpec{}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, err
	}
	return spec, nil
}

// countResidues reads the input FASTA and sums the sequence lengths. The
// count feeds the running time estimate and the SJF algorithm. A FASTA
// that can not be read from here is left to the check on the compute
// node; the job then runs without an estimate.
func countResidues(t *foldingjob.FoldingJob) int {
	path := t.Config.Fasta
	if !filepath.IsAbs(path) && t.Config.WorkDir != "" {
		path = filepath.Join(t.Config.WorkDir, path)
	}
	n, err := fasta.TotalResidues(path)
	if err != nil {
		klog.InfoS("Could not count residues of input fasta", "err", err,
			"job", t.JobName, "fasta", path)
		return 0
	}
	return n
}

// getOrCreateBaseJobInfo finds record (history information) of the job by
// its collection. If not found, create a basic info and insert to database.
//  DB layout:
//  db.collection.record
//  <databaseNameJobInfo>.<job_collection>.<job_name>
// We simply identify the job collection by the name before timestamping,
// which means jobs submitted under the same name are considered the same
// kind of fold and assumed to have similar characteristics.
func (s *Service) getOrCreateBaseJobInfo(jobCollection string) (mongo.FoldingJobInfo, error) {
	sess := s.session.Clone()
	defer sess.Close()

	info := mongo.FoldingJobInfo{}
	err := sess.DB(databaseNameJobInfo).C(jobCollection).Find(bson.M{"name": jobCollection}).One(&info)
	if err != nil {
		if err == mgo.ErrNotFound {
			klog.InfoS("Could not find base job info, making basic info",
				"database", databaseNameJobInfo, "collection", jobCollection)

			info = mongo.CreateBaseJobInfo(jobCollection)
			err = sess.DB(databaseNameJobInfo).C(jobCollection).Insert(info)
			if err != nil {
				klog.InfoS("Failed to insert base job info", "err", err,
					"database", databaseNameJobInfo, "collection", jobCollection)
				return info, err
			}
		} else {
			return info, err
		}
	}
	return info, nil
}

// initJobInfo creates job info based on the given base job info. Also
// estimates the running time from the residue count and the folding
// speed observed for the job collection so far.
func initJobInfo(basicInfo mongo.FoldingJobInfo, jobName string, residues int) mongo.FoldingJobInfo {
	info := basicInfo
	info.Name = jobName
	info.Status = string(types.JobSubmitted)
	info.BackendJobID = ""
	info.Node = ""
	info.Residues = int32(residues)
	info.WaitingTimeSec = 0.0
	info.RunningTimeSec = 0.0
	info.GpuTimeSec = 0.0
	info.EstimatedRunningTimeSec = float32(residues) * basicInfo.SecPerResidue
	info.ExitCode = 0
	info.Attempts = 0
	return info
}

func (s *Service) deleteFoldingJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Println("Endpoint Hit: deleteFoldingJob")
		start := time.Now()

		reqBody, err := ioutil.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, err.Error())
			return
		}

		var job string
		err = json.Unmarshal(reqBody, &job)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(err)
			return
		}

		err = s.DeleteFoldingJob(job)
		s.Metrics.deleteJobDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if err == mgo.ErrNotFound {
				w.WriteHeader(http.StatusNotFound)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
			fmt.Fprintf(w, err.Error())
		} else {
			s.Metrics.deleteJobSuccessDuration.Observe(time.Since(start).Seconds())
			s.Metrics.jobsDeletedCounter.Inc()
			fmt.Fprintf(w, "Folding job deleted: %s", job)
		}
	}
}

// DeleteFoldingJob
//  1. Delete job metadata from db
//  2. Publish msg to mq, which is meant to be subscribed by the scheduler
// The job info record is kept for the folding speed history.
func (s *Service) DeleteFoldingJob(jobName string) error {
	sess := s.session.Clone()
	defer sess.Close()

	c := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata)

	// Make sure the folding job exists
	t := foldingjob.FoldingJob{}
	err := c.Find(bson.M{"name": jobName}).One(&t)
	if err != nil {
		if err == mgo.ErrNotFound {
			klog.InfoS("Attempted to delete a non-existing folding job", "err", err, "job", jobName)
		} else {
			klog.InfoS("Failed to delete folding job", "err", err, "job", jobName)
		}
		return err
	}

	err = c.Remove(bson.M{"name": jobName})
	if err != nil {
		klog.InfoS("Failed to delete folding job", "err", err, "job", jobName)
		return err
	}

	msg := rabbitmq.Msg{Verb: rabbitmq.VerbDelete, JobName: jobName}
	err = rabbitmq.PublishToQueue(s.mqConn, config.JobMsgQueue, msg)
	if err != nil {
		klog.InfoS("Failed to delete folding job", "err", err, "job", jobName)
		return err
	}

	klog.InfoS("Deleted folding job", "job", jobName)
	return nil
}

func (s *Service) listFoldingJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Println("Endpoint Hit: listFoldingJobs")

		str, err := s.ListFoldingJobs()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, err.Error())
			return
		}
		fmt.Fprint(w, str)
	}
}

// ListFoldingJobs renders a table of all folding jobs recorded in
// mongodb, oldest submission first. The dispatcher keeps the status
// fields current.
func (s *Service) ListFoldingJobs() (string, error) {
	sess := s.session.Clone()
	defer sess.Close()

	jobs := []foldingjob.FoldingJob{}
	err := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Find(nil).Sort("submitted").All(&jobs)
	if err != nil {
		return "", err
	}

	str := fmt.Sprintf("%-60s%-12s%-6s%-10s%-10s%-22s\n",
		"NAME", "STATUS", "GPUS", "BACKEND", "ATTEMPTS", "SUBMITTED")
	for i := range jobs {
		t := &jobs[i]
		str += fmt.Sprintf("%-60s%-12s%-6d%-10s%-10d%-22s\n",
			t.JobName, t.Status, t.Config.GPUs, t.Config.Backend, t.Attempts,
			t.Submitted.Format(time.RFC3339))
	}
	return str, nil
}

func (s *Service) getFoldingJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Println("Endpoint Hit: getFoldingJob")

		name := mux.Vars(r)["name"]
		info, err := s.GetFoldingJob(name)
		if err != nil {
			if err == mgo.ErrNotFound {
				w.WriteHeader(http.StatusNotFound)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
			fmt.Fprintf(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}

// GetFoldingJob returns the job info record of a single folding job.
func (s *Service) GetFoldingJob(jobName string) (mongo.FoldingJobInfo, error) {
	sess := s.session.Clone()
	defer sess.Close()

	info := mongo.FoldingJobInfo{}
	t := foldingjob.FoldingJob{}
	err := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Find(bson.M{"name": jobName}).One(&t)
	if err != nil {
		return info, err
	}
	err = sess.DB(databaseNameJobInfo).C(t.JobCollection).Find(bson.M{"name": jobName}).One(&info)
	return info, err
}
